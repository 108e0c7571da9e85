package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Federated runs an interactive sign-in with an external identity provider and
// returns that provider's ID token.
type Federated interface {
	Authenticate(ctx context.Context) (providerID, idToken string, err error)
}

// GoogleProviderID is the provider id the identity toolkit expects for Google.
const GoogleProviderID = "google.com"

// GoogleFlow signs in with Google using the authorization-code flow with PKCE and a
// loopback redirect, the command-line equivalent of a sign-in popup.
type GoogleFlow struct {
	config oauth2.Config
	open   func(authURL string) error
	logger *slog.Logger
}

// NewGoogleFlow creates a flow for an OAuth client. open is called with the consent
// URL; it typically prints it or launches a browser.
func NewGoogleFlow(clientID, clientSecret string, open func(authURL string) error, logger *slog.Logger) *GoogleFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleFlow{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		open:   open,
		logger: logger.With("component", "google_flow"),
	}
}

// WithEndpoint overrides the OAuth endpoint.
func (g *GoogleFlow) WithEndpoint(endpoint oauth2.Endpoint) *GoogleFlow {
	g.config.Endpoint = endpoint
	return g
}

type callbackResult struct {
	code string
	err  error
}

// Authenticate waits for the consent redirect. Cancelling ctx or denying consent
// returns ErrPopupClosed.
func (g *GoogleFlow) Authenticate(ctx context.Context) (string, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", "", fmt.Errorf("listen for redirect: %w", err)
	}

	cfg := g.config
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"

	state := uuid.New().String()
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch in redirect")
		case q.Get("error") == "access_denied":
			res.err = ErrPopupClosed
		case q.Get("error") != "":
			res.err = &ProviderError{Code: q.Get("error"), Message: q.Get("error_description")}
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, "Sign-in was not completed. You can close this window.", http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Signed in. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Warn("redirect listener stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if g.open != nil {
		if err := g.open(authURL); err != nil {
			return "", "", fmt.Errorf("open consent page: %w", err)
		}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		g.logger.Debug("federated sign-in abandoned", "error", ctx.Err())
		return "", "", ErrPopupClosed
	case res = <-results:
	}
	if res.err != nil {
		return "", "", res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", "", fmt.Errorf("exchange code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", "", errors.New("google response carried no id_token")
	}
	return GoogleProviderID, idToken, nil
}
