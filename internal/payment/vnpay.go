// Package payment implements the payment provider gateways.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

const vnpTimeLayout = "20060102150405"

// Vietnam has no daylight saving time; a fixed zone avoids depending on
// tzdata in the container.
var vnpZone = time.FixedZone("ICT", 7*60*60)

// VNPayConfig holds the merchant settings issued by VNPay.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Locale     string
}

// VNPay builds signed payment URLs and verifies IPN/return callbacks
// with HMAC-SHA512 over the sorted, urlencoded vnp_* parameters.
type VNPay struct {
	cfg VNPayConfig
}

func NewVNPay(cfg VNPayConfig) *VNPay {
	if cfg.Locale == "" {
		cfg.Locale = "vn"
	}
	return &VNPay{cfg: cfg}
}

// Sign returns the hex HMAC-SHA512 of params without the hash fields.
func (v *VNPay) Sign(params url.Values) string {
	signed := url.Values{}
	for k, vals := range params {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		signed[k] = vals
	}
	mac := hmac.New(sha512.New, []byte(v.cfg.HashSecret))
	mac.Write([]byte(signed.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildURL returns the signed redirect URL for req.
func (v *VNPay) BuildURL(req model.PaymentRequest) (string, error) {
	if v.cfg.PayURL == "" || v.cfg.TmnCode == "" || v.cfg.HashSecret == "" {
		return "", fmt.Errorf("%w: vnpay merchant settings missing", model.ErrPaymentProviderUnavailable)
	}
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	info := req.OrderInfo
	if info == "" {
		info = "Thanh toan ve " + req.BookingID
	}
	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.Reference)
	params.Set("vnp_OrderInfo", info)
	params.Set("vnp_OrderType", "billpayment")
	params.Set("vnp_Locale", v.cfg.Locale)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_CreateDate", req.CreatedAt.In(vnpZone).Format(vnpTimeLayout))
	params.Set("vnp_ExpireDate", req.ExpiresAt.In(vnpZone).Format(vnpTimeLayout))

	hash := v.Sign(params)
	return v.cfg.PayURL + "?" + params.Encode() + "&vnp_SecureHash=" + hash + "&vnp_SecureHashType=HMACSHA512", nil
}

// CreateSession signs the payment URL locally; VNPay needs no
// server-side session call.
func (v *VNPay) CreateSession(ctx context.Context, req model.PaymentRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPaymentProviderUnavailable, err)
	}
	return v.BuildURL(req)
}

// VerifyCallback authenticates params and decodes the outcome.
func (v *VNPay) VerifyCallback(params url.Values) (model.PaymentCallback, error) {
	// An empty key would let anyone compute a valid signature.
	if v.cfg.HashSecret == "" {
		return model.PaymentCallback{}, fmt.Errorf("%w: hash secret not configured", model.ErrCallbackVerificationFailed)
	}
	got := strings.ToLower(params.Get("vnp_SecureHash"))
	if got == "" {
		return model.PaymentCallback{}, fmt.Errorf("%w: missing vnp_SecureHash", model.ErrCallbackVerificationFailed)
	}
	want := v.Sign(params)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return model.PaymentCallback{}, fmt.Errorf("%w: signature mismatch", model.ErrCallbackVerificationFailed)
	}

	ref := params.Get("vnp_TxnRef")
	if ref == "" {
		return model.PaymentCallback{}, fmt.Errorf("%w: missing vnp_TxnRef", model.ErrCallbackVerificationFailed)
	}
	cb := model.PaymentCallback{
		Reference:     ref,
		ProviderTxnID: params.Get("vnp_TransactionNo"),
		ResponseCode:  params.Get("vnp_ResponseCode"),
	}
	if raw := params.Get("vnp_Amount"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.PaymentCallback{}, fmt.Errorf("%w: bad vnp_Amount", model.ErrCallbackVerificationFailed)
		}
		cb.Amount = n / 100
	}

	status := params.Get("vnp_TransactionStatus")
	switch {
	case cb.ResponseCode == "00" && (status == "" || status == "00"):
		cb.Outcome = model.PaymentSuccess
	case cb.ResponseCode == "24":
		cb.Outcome = model.PaymentCancelled
	default:
		cb.Outcome = model.PaymentFailure
	}
	return cb, nil
}
