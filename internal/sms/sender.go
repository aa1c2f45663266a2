package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/common/middleware"
)

// Sender 外发短信的抽象，notify 包只依赖这个接口。
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender 通过 Twilio Messages API 发短信。
// 外层套了令牌桶限速和熔断器：Twilio 对每个号码有每秒发送限制，
// 账号被限流或持续报错时熔断快速失败，避免每日任务被拖死。
type TwilioSender struct {
	client  *twilio.RestClient
	from    string
	limiter *middleware.TokenBucket
	breaker *middleware.CircuitBreaker
	log     logger.Logger
}

func NewTwilioSender(accountSID, authToken, from string, maxPerSec int64, log logger.Logger) *TwilioSender {
	if maxPerSec <= 0 {
		maxPerSec = 1
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{
		client:  client,
		from:    from,
		limiter: middleware.NewTokenBucket(maxPerSec, maxPerSec),
		breaker: middleware.NewCircuitBreaker("twilio", 5, 30*time.Second),
		log:     log,
	}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("sms sender not configured")
	}
	if !s.limiter.Allow(ctx) {
		return fmt.Errorf("sms rate limit exceeded")
	}
	return s.breaker.Call(ctx, func() error {
		params := &twilioapi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(s.from)
		params.SetBody(body)

		resp, err := s.client.Api.CreateMessage(params)
		if err != nil {
			return fmt.Errorf("twilio create message: %w", err)
		}
		if s.log != nil && resp.Sid != nil {
			s.log.WithField("message_sid", *resp.Sid).Debug("sms accepted by twilio")
		}
		return nil
	})
}
