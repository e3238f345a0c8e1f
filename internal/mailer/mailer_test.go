package mailer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSend_Payload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := New(Options{APIKey: "SG.key", Host: srv.URL}).Send(context.Background(), Message{
		FromEmail: "noreply@acme.io",
		FromName:  "Acme",
		To:        []string{"a@acme.io", "b@acme.io"},
		Subject:   "Velocity Report",
		HTML:      "<p>hi</p>",
	})
	require.NoError(t, err)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "Velocity Report", doc.Get("subject").String())
	assert.Equal(t, "noreply@acme.io", doc.Get("from.email").String())
	assert.Equal(t, "Acme", doc.Get("from.name").String())
	assert.Equal(t, int64(2), doc.Get("personalizations.0.to.#").Int())
	assert.Equal(t, "b@acme.io", doc.Get("personalizations.0.to.1.email").String())
	assert.Equal(t, "text/html", doc.Get("content.0.type").String())
	assert.Equal(t, "<p>hi</p>", doc.Get("content.0.value").String())
}

func TestSend_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"The provided authorization grant is invalid"}]}`))
	}))
	defer srv.Close()

	err := New(Options{APIKey: "bad", Host: srv.URL}).Send(context.Background(), Message{
		To: []string{"a@acme.io"}, Subject: "s", HTML: "h",
	})
	var de *DeliveryError
	require.True(t, errors.As(err, &de), "err = %v", err)
	assert.Equal(t, http.StatusUnauthorized, de.StatusCode)
	assert.Contains(t, de.Body, "authorization grant")
}

func TestSend_NoRecipients(t *testing.T) {
	err := New(Options{APIKey: "k"}).Send(context.Background(), Message{Subject: "s"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}
