// Package notify posts run results to a webhook.
package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"oilcatalog/internal/core/pipeline"
	"oilcatalog/internal/logger"
)

const userAgent = "oilcatalog/1.0"

type Webhook struct {
	client *resty.Client
	url    string
	secret string
	now    func() time.Time
	log    *logger.Logger
}

var _ pipeline.Notifier = (*Webhook)(nil)

func NewWebhook(url, secret string) *Webhook {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json")
	return &Webhook{client: client, url: url, secret: secret, now: time.Now, log: logger.New("Webhook")}
}

type payload struct {
	RunID  string           `json:"run_id"`
	Type   string           `json:"type"`
	Status string           `json:"status"`
	Data   pipeline.Summary `json:"data"`
}

// RunFinished posts the run summary. With a secret configured the request is
// signed as hex(HMAC-SHA256(timestamp + body)).
func (w *Webhook) RunFinished(ctx context.Context, sum pipeline.Summary) error {
	status := "completed"
	if sum.State != pipeline.StateDone {
		status = "failed"
	}
	body, err := json.Marshal(payload{RunID: sum.RunID, Type: "catalog.crawl", Status: status, Data: sum})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req := w.client.R().
		SetContext(ctx).
		SetHeader("X-Catalog-Event", "run."+status).
		SetHeader("X-Catalog-Run-ID", sum.RunID).
		SetBody(body)

	if w.secret != "" {
		ts := strconv.FormatInt(w.now().Unix(), 10)
		req.SetHeader("X-Signature-Timestamp", ts)
		req.SetHeader("X-Signature", Sign(w.secret, ts, body))
	} else {
		w.log.LogDebugf("webhook secret not configured, sending unsigned")
	}

	res, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.url, err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook %s: status %d", w.url, res.StatusCode())
	}
	w.log.LogInfof("webhook delivered for run %s (status %d)", sum.RunID, res.StatusCode())
	return nil
}

func Sign(secret, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
