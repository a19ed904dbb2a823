// Package seatmap derives the fixed seat layout of an auditorium pattern.
// Every place that needs a layout (inventory initialization, availability
// responses) goes through Build or Layout so clients and inventory agree.
package seatmap

import (
	"fmt"
	"strings"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

// Pattern identifies an auditorium layout template.
type Pattern string

const (
	PatternOne   Pattern = "ONE"
	PatternTwo   Pattern = "TWO"
	PatternThree Pattern = "THREE"
)

// Price multipliers in percent of the showtime base price.
var multipliers = map[model.SeatClass]int{
	model.SeatClassStandard: 100,
	model.SeatClassVIP:      120,
	model.SeatClassCouple:   200,
}

// block maps a contiguous range of rows to one seat class.
type block struct {
	rows  string
	count int
	class model.SeatClass
}

var patterns = map[Pattern][]block{
	PatternOne: {
		{rows: "ABC", count: 19, class: model.SeatClassStandard},
		{rows: "DEFGH", count: 19, class: model.SeatClassVIP},
		{rows: "K", count: 7, class: model.SeatClassCouple},
	},
	PatternTwo: {
		{rows: "ABC", count: 26, class: model.SeatClassStandard},
		{rows: "DEFGHIJK", count: 26, class: model.SeatClassVIP},
		{rows: "L", count: 13, class: model.SeatClassCouple},
	},
	PatternThree: {
		{rows: "ABC", count: 10, class: model.SeatClassStandard},
		{rows: "DEFGHIJ", count: 10, class: model.SeatClassVIP},
		{rows: "K", count: 5, class: model.SeatClassCouple},
	},
}

// ParsePattern resolves a pattern identifier case-insensitively.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := patterns[p]; !ok {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidPattern, s)
	}
	return p, nil
}

// Multiplier returns the price multiplier of a class in percent.
func Multiplier(class model.SeatClass) int {
	return multipliers[class]
}

// PriceFor applies the class multiplier to a base price.
func PriceFor(class model.SeatClass, basePrice int64) int64 {
	return basePrice * int64(Multiplier(class)) / 100
}

// Build returns every seat of the pattern ordered by row, then column.
func Build(p Pattern, basePrice int64) ([]model.Seat, error) {
	blocks, ok := patterns[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidPattern, string(p))
	}
	var seats []model.Seat
	for _, b := range blocks {
		width := 1
		if b.class == model.SeatClassCouple {
			width = 2
		}
		for _, r := range b.rows {
			row := string(r)
			for col := 1; col <= b.count; col++ {
				seats = append(seats, model.Seat{
					Number:        fmt.Sprintf("%s%d", row, col),
					Row:           row,
					Column:        col,
					Width:         width,
					Class:         b.class,
					MultiplierPct: Multiplier(b.class),
					Price:         PriceFor(b.class, basePrice),
				})
			}
		}
	}
	return seats, nil
}

// Layout returns the per-row description of the pattern grid.
func Layout(p Pattern) ([]model.RowLayout, error) {
	blocks, ok := patterns[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidPattern, string(p))
	}
	var rows []model.RowLayout
	for _, b := range blocks {
		width := 1
		if b.class == model.SeatClassCouple {
			width = 2
		}
		for _, r := range b.rows {
			rows = append(rows, model.RowLayout{Row: string(r), Count: b.count, Class: b.class, Width: width})
		}
	}
	return rows, nil
}

// LayoutFromSeats reconstructs the row layout from initialized seats.
// Used when the pattern itself is not stored with the inventory.
func LayoutFromSeats(seats []model.ShowtimeSeat) []model.RowLayout {
	var rows []model.RowLayout
	index := map[string]int{}
	for _, s := range seats {
		row, _, ok := SplitNumber(s.SeatNumber)
		if !ok {
			continue
		}
		i, seen := index[row]
		if !seen {
			width := 1
			if s.Class == model.SeatClassCouple {
				width = 2
			}
			index[row] = len(rows)
			rows = append(rows, model.RowLayout{Row: row, Class: s.Class, Width: width})
			i = len(rows) - 1
		}
		rows[i].Count++
	}
	return rows
}

// SplitNumber splits a seat number like "K12" into its row and column.
func SplitNumber(number string) (string, int, bool) {
	if len(number) < 2 {
		return "", 0, false
	}
	row := number[:1]
	if row[0] < 'A' || row[0] > 'Z' {
		return "", 0, false
	}
	col := 0
	for _, c := range number[1:] {
		if c < '0' || c > '9' {
			return "", 0, false
		}
		col = col*10 + int(c-'0')
	}
	if col == 0 {
		return "", 0, false
	}
	return row, col, true
}
