package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"webmonitor/internal/config"
)

// --- EMAIL ---

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailProvider struct {
	cfg      config.EmailConfig
	sendMail sendMailFunc
}

func NewEmailProvider(cfg config.EmailConfig) *EmailProvider {
	return &EmailProvider{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *EmailProvider) Name() string { return "email" }

func (e *EmailProvider) Send(_ context.Context, a Alert) error {
	to := a.Email
	if to == "" {
		to = e.cfg.To
	}
	if to == "" {
		return fmt.Errorf("no email recipient")
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	return e.sendMail(addr, auth, e.cfg.From, []string{to}, buildEmail(e.cfg.From, to, a))
}

func buildEmail(from, to string, a Alert) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(from) + "\r\n")
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: WebMonitor: " + headerValue(a.Title) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(a.Message + "\r\n")
	if a.Phone != "" {
		b.WriteString("Contact: " + a.Phone + "\r\n")
	}
	return []byte(b.String())
}

// headerValue folds control characters into spaces so a value cannot
// start a new header line.
func headerValue(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// --- TELEGRAM ---

const telegramAPI = "https://api.telegram.org"

type TelegramProvider struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegramProvider(cfg config.BotConfig) *TelegramProvider {
	return &TelegramProvider{
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *TelegramProvider) Name() string { return "telegram" }

func (t *TelegramProvider) Send(ctx context.Context, a Alert) error {
	text := fmt.Sprintf("%s\n%s", a.Title, a.Message)
	if a.Phone != "" {
		text += "\nContact: " + a.Phone
	}

	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	}
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	return postJSON(ctx, t.client, apiURL, payload)
}

// --- GENERIC WEBHOOK ---

// WebhookPayload is the JSON body posted to webhook endpoints.
type WebhookPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Status  string `json:"status"`
	SiteID  int64  `json:"site_id"`
	Site    string `json:"site"`
	URL     string `json:"url"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Time    string `json:"time"`
}

type WebhookProvider struct {
	url    string
	client *http.Client
}

func NewWebhookProvider(cfg config.WebhookConfig) *WebhookProvider {
	return &WebhookProvider{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *WebhookProvider) Name() string { return "webhook" }

func (w *WebhookProvider) Send(ctx context.Context, a Alert) error {
	return postJSON(ctx, w.client, w.url, WebhookPayload{
		Title:   a.Title,
		Message: a.Message,
		Status:  a.Status,
		SiteID:  a.SiteID,
		Site:    a.SiteName,
		URL:     a.URL,
		Email:   a.Email,
		Phone:   a.Phone,
		Time:    time.Now().Format(time.RFC3339),
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
