package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestClientSend(t *testing.T) {
	var capturedURL string
	var capturedHeaders http.Header
	var capturedBody map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(raw, &capturedBody); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusAccepted,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("sg-key", Address{Email: "no-reply@loja.test", Name: "Loja"},
		WithBaseURL("http://sendgrid.test/v3"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Send(context.Background(), Message{
		To:       Address{Email: "buyer@example.com", Name: "Buyer"},
		Subject:  "Pagamento confirmado",
		PlainVer: "Seu pedido #42 foi confirmado.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if capturedURL != "http://sendgrid.test/v3/mail/send" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "Bearer sg-key" {
		t.Fatal("authorization header missing")
	}
	if capturedBody["subject"] != "Pagamento confirmado" {
		t.Fatalf("unexpected subject %v", capturedBody["subject"])
	}
	from, ok := capturedBody["from"].(map[string]any)
	if !ok || from["email"] != "no-reply@loja.test" {
		t.Fatalf("unexpected from %v", capturedBody["from"])
	}
}

func TestClientSendRejectsIncompleteMessage(t *testing.T) {
	client, err := NewClient("sg-key", Address{Email: "no-reply@loja.test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.Send(context.Background(), Message{Subject: "x", PlainVer: "y"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
	if err := client.Send(context.Background(), Message{To: Address{Email: "a@b.c"}, PlainVer: "y"}); err == nil {
		t.Fatal("expected error for missing subject")
	}
	if err := client.Send(context.Background(), Message{To: Address{Email: "a@b.c"}, Subject: "x"}); err == nil {
		t.Fatal("expected error for missing body")
	}
}

func TestClientSendSurfacesAPIFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader(`{"errors":[{"message":"bad key"}]}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("sg-key", Address{Email: "no-reply@loja.test"}, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.Send(context.Background(), Message{To: Address{Email: "a@b.c"}, Subject: "x", PlainVer: "y"}); err == nil {
		t.Fatal("expected error from API failure")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
