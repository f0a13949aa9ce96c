package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"status-promo-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayout() ports.PayoutRequest {
	return ports.PayoutRequest{
		BankCode:      "HDFC0001",
		AccountNumber: "1234567890",
		AccountName:   "Asha Rao",
		Amount:        9850,
		Reference:     "wd-001",
	}
}

func TestPaymentGateway_Success(t *testing.T) {
	var got ports.PayoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, payoutsPath, r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"reference":"GW-778","message":"ok"}`))
	}))
	defer srv.Close()

	gw := NewPaymentGateway(srv.URL+"/", "key-1", time.Second, zerolog.Nop())
	res, err := gw.ProcessPayment(context.Background(), samplePayout())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "GW-778", res.Reference)
	assert.Equal(t, samplePayout(), got)
}

func TestPaymentGateway_FillsMissingReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	res, err := NewPaymentGateway(srv.URL, "", time.Second, zerolog.Nop()).
		ProcessPayment(context.Background(), samplePayout())
	require.NoError(t, err)
	assert.Equal(t, "wd-001", res.Reference)
}

func TestPaymentGateway_Declined(t *testing.T) {
	for _, code := range []int{http.StatusPaymentRequired, http.StatusUnprocessableEntity} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte("account closed"))
		}))

		res, err := NewPaymentGateway(srv.URL, "", time.Second, zerolog.Nop()).
			ProcessPayment(context.Background(), samplePayout())
		srv.Close()

		require.NoError(t, err, "status %d", code)
		assert.False(t, res.Success)
		assert.Equal(t, "account closed", res.Message)
		assert.Equal(t, "wd-001", res.Reference)
	}
}

func TestPaymentGateway_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	}))
	defer srv.Close()

	res, err := NewPaymentGateway(srv.URL, "", time.Second, zerolog.Nop()).
		ProcessPayment(context.Background(), samplePayout())
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "payment gateway returned 502")
}

func TestPaymentGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewPaymentGateway(url, "", time.Second, zerolog.Nop()).
		ProcessPayment(context.Background(), samplePayout())
	assert.ErrorContains(t, err, "payment gateway unavailable")
}

func TestPaymentGateway_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewPaymentGateway(srv.URL, "", 50*time.Millisecond, zerolog.Nop()).
		ProcessPayment(context.Background(), samplePayout())
	assert.Error(t, err)
}

func TestPaymentGateway_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewPaymentGateway(srv.URL, "", time.Second, zerolog.Nop()).
		ProcessPayment(context.Background(), samplePayout())
	assert.ErrorContains(t, err, "decode payment gateway response")
}
