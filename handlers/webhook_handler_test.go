package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signWebhook(secret, id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%s.%s.%s", id, timestamp, string(body))))
	return "v1," + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyClerkSignature(t *testing.T) {
	const secret = "whsec_test_secret"
	body := []byte(`{"type":"user.created","data":{"id":"user_123"}}`)

	t.Run("valid signature passes", func(t *testing.T) {
		t.Setenv("CLERK_WEBHOOK_SECRET", secret)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		req.Header.Set("svix-id", "msg_1")
		req.Header.Set("svix-timestamp", "1700000000")
		req.Header.Set("svix-signature", signWebhook(secret, "msg_1", "1700000000", body))

		assert.True(t, verifyClerkSignature(req, body))
	})

	t.Run("tampered body fails", func(t *testing.T) {
		t.Setenv("CLERK_WEBHOOK_SECRET", secret)

		tampered := []byte(`{"type":"user.created","data":{"id":"user_evil"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(tampered))
		req.Header.Set("svix-id", "msg_1")
		req.Header.Set("svix-timestamp", "1700000000")
		req.Header.Set("svix-signature", signWebhook(secret, "msg_1", "1700000000", body))

		assert.False(t, verifyClerkSignature(req, tampered))
	})

	t.Run("missing headers fail", func(t *testing.T) {
		t.Setenv("CLERK_WEBHOOK_SECRET", secret)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		assert.False(t, verifyClerkSignature(req, body))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		t.Setenv("CLERK_WEBHOOK_SECRET", secret)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		req.Header.Set("svix-id", "msg_1")
		req.Header.Set("svix-timestamp", "1700000000")
		req.Header.Set("svix-signature", signWebhook("whsec_other", "msg_1", "1700000000", body))

		assert.False(t, verifyClerkSignature(req, body))
	})

	t.Run("skips verification when secret unset", func(t *testing.T) {
		t.Setenv("CLERK_WEBHOOK_SECRET", "")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		assert.True(t, verifyClerkSignature(req, body))
	})
}
