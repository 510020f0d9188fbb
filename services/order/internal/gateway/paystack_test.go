package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

const testSecret = "sk_test_secret"

func newPaystack(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, testSecret)
}

func verifyHandler(t *testing.T, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		assert.Equal(t, "Bearer "+testSecret, r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func gatewayOrder() *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		ReferenceKey:    "ref-1",
		TotalAmountFiat: 250000,
		Currency:        "NGN",
		ContactEmail:    "buyer@example.com",
	}
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   domain.Verdict
	}{
		{
			name:   "success with matching amount",
			status: http.StatusOK,
			body:   `{"status":true,"message":"ok","data":{"id":9001,"status":"success","reference":"ref-1","amount":250000,"currency":"NGN"}}`,
			want:   domain.Confirmed("9001"),
		},
		{
			name:   "success with short amount",
			status: http.StatusOK,
			body:   `{"status":true,"data":{"id":9001,"status":"success","amount":100,"currency":"NGN"}}`,
			want:   domain.Failed(domain.ReasonMismatch),
		},
		{
			name:   "success in another currency",
			status: http.StatusOK,
			body:   `{"status":true,"data":{"id":9001,"status":"success","amount":250000,"currency":"USD"}}`,
			want:   domain.Failed(domain.ReasonMismatch),
		},
		{
			name:   "failed charge",
			status: http.StatusOK,
			body:   `{"status":true,"data":{"id":9001,"status":"failed","amount":250000,"currency":"NGN"}}`,
			want:   domain.Failed(domain.ReasonGatewayFailed),
		},
		{
			name:   "reversed charge",
			status: http.StatusOK,
			body:   `{"status":true,"data":{"id":9001,"status":"reversed","amount":250000,"currency":"NGN"}}`,
			want:   domain.Failed(domain.ReasonGatewayFailed),
		},
		{
			name:   "abandoned checkout stays pending",
			status: http.StatusOK,
			body:   `{"status":true,"data":{"id":9001,"status":"abandoned","amount":250000,"currency":"NGN"}}`,
			want:   domain.Pending("abandoned"),
		},
		{
			name:   "unknown reference",
			status: http.StatusNotFound,
			body:   `{"status":false,"message":"Transaction reference not found"}`,
			want:   domain.Pending("not found"),
		},
		{
			name:   "gateway outage",
			status: http.StatusBadGateway,
			body:   ``,
			want:   domain.Pending("gateway unavailable"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := NewVerifier(newPaystack(t, verifyHandler(t, tt.status, tt.body)))
			assert.Equal(t, tt.want, v.Verify(context.Background(), gatewayOrder()))
		})
	}
}

func TestInstructor_Initialize(t *testing.T) {
	t.Parallel()

	order := gatewayOrder()
	client := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer "+testSecret, r.Header.Get("Authorization"))

		var in InitializeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "buyer@example.com", in.Email)
		assert.Equal(t, int64(250000), in.Amount)
		assert.Equal(t, "ref-1", in.Reference)
		assert.Equal(t, "https://shop.example/return", in.CallbackURL)
		assert.Equal(t, order.ID.String(), in.Metadata["order_id"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref-1"}}`))
	})

	pi, err := NewInstructor(client, "https://shop.example/return").Instruct(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPaystack, pi.Method)
	assert.Equal(t, "https://checkout.paystack.com/abc", pi.RedirectURL)
}

func TestInstructor_Errors(t *testing.T) {
	t.Parallel()

	client := newPaystack(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	in := NewInstructor(client, "")

	noEmail := gatewayOrder()
	noEmail.ContactEmail = ""
	_, err := in.Instruct(context.Background(), noEmail)
	require.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = in.Instruct(context.Background(), gatewayOrder())
	require.ErrorIs(t, err, domain.ErrPaymentUnavailable)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	sig := Sign(body, testSecret)

	assert.True(t, VerifySignature(body, sig, testSecret))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature(append(body, ' '), sig, testSecret))
	assert.False(t, VerifySignature(body, "", testSecret))
	assert.False(t, VerifySignature(body, "zz", testSecret))

	ev, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, EventChargeSuccess, ev.Event)
	assert.Equal(t, "ref-1", ev.Data.Reference)
}
