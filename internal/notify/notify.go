// Package notify announces new registrations to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

// TagTranslator restricts a target to documents whose info carries x-translator.
const TagTranslator = "translator"

const DefaultTimeout = 10 * time.Second

// Target is one webhook. An empty Tags value receives every registration.
type Target struct {
	Webhook string `yaml:"webhook"`
	Tags    string `yaml:"tags,omitempty"`
}

// Config is the notification setup passed at construction.
type Config struct {
	Targets []Target      `yaml:"webhooks"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Debug suppresses every delivery.
	Debug bool `yaml:"-"`
}

// LoadConfig reads a YAML file of the form:
//
//	webhooks:
//	  - webhook: https://hooks.slack.com/services/...
//	  - webhook: https://hooks.slack.com/services/...
//	    tags: translator
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read webhooks file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse webhooks file: %w", err)
	}
	for i, t := range cfg.Targets {
		if strings.TrimSpace(t.Webhook) == "" {
			return cfg, fmt.Errorf("webhooks[%d]: missing webhook url", i)
		}
	}
	return cfg, nil
}

// Event describes a successful registration.
type Event struct {
	ID          string
	Title       string
	Description string
	Owner       string
	UIURL       string
	// Translator is set when the document info has an x-translator block.
	Translator bool
}

type Notifier interface {
	NotifyCreated(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) NotifyCreated(context.Context, Event) error { return nil }

// Webhook posts a JSON message to every matching target.
type Webhook struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

func NewWebhook(cfg Config, client *http.Client, log logger.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Webhook{cfg: cfg, client: client, log: log}
}

// Matches reports whether target t wants ev.
func (t Target) Matches(ev Event) bool {
	switch strings.TrimSpace(t.Tags) {
	case "":
		return true
	case TagTranslator:
		return ev.Translator
	default:
		return false
	}
}

// NotifyCreated delivers ev to each matching target. Every target is attempted; failures are
// joined into one notification error.
func (w *Webhook) NotifyCreated(ctx context.Context, ev Event) error {
	if w.cfg.Debug {
		w.log.Debug("notifications disabled in debug mode", logger.String("id", ev.ID))
		return nil
	}

	var errs []error
	for _, t := range w.cfg.Targets {
		if !t.Matches(ev) {
			continue
		}
		if err := w.post(ctx, t.Webhook, Compose(ev, t.Tags)); err != nil {
			errs = append(errs, err)
			continue
		}
		w.log.Info("registration announced", logger.String("id", ev.ID), logger.String("tags", t.Tags))
	}

	if err := errors.Join(errs...); err != nil {
		return domain.Wrap(domain.KindNotification, err, "webhook delivery failed")
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, url string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	}
	return nil
}
