package services

import (
	"fmt"
	"net/http"
	"net/smtp"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jjdimalanta/mangan-app/utils"
)

// Notification channels
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// NotifyJob is a single message to a customer.
type NotifyJob struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
	Attempts  int
}

// NotifierMetrics tracks delivery outcomes.
type NotifierMetrics struct {
	TotalQueued int64
	SentSMS     int64
	SentEmail   int64
	FailedSends int64
	Retries     int64
}

// Gateway abstracts the actual SMS and email transports so the retry loop
// can be tested without touching providers.
type Gateway interface {
	SendSMS(to, body string) error
	SendEmail(to, subject, body string) error
}

// Notifier sends customer messages and retries transient failures on a
// background ticker.
type Notifier struct {
	gateway       Gateway
	metrics       NotifierMetrics
	retryQueue    []NotifyJob
	retryInterval time.Duration
	maxAttempts   int
	mutex         sync.Mutex
	StopChan      chan struct{}
}

var (
	notifier     *Notifier
	notifierOnce sync.Once
)

// GetNotifier returns the singleton notifier wired to the configured
// gateway. Without provider keys it falls back to a logging gateway so
// development setups still show what would have been sent.
func GetNotifier() *Notifier {
	notifierOnce.Do(func() {
		var gateway Gateway
		if os.Getenv("SMS_API_KEY") == "" && os.Getenv("SMTP_HOST") == "" {
			fmt.Println("WARNING: no SMS_API_KEY or SMTP_HOST configured, notifications will only be logged")
			gateway = &LogGateway{}
		} else {
			gateway = NewHTTPGateway()
		}
		notifier = NewNotifier(gateway)
	})
	return notifier
}

// NewNotifier creates a notifier with an explicit gateway.
func NewNotifier(gateway Gateway) *Notifier {
	return &Notifier{
		gateway:       gateway,
		retryQueue:    make([]NotifyJob, 0),
		retryInterval: 5 * time.Minute,
		maxAttempts:   3,
		StopChan:      make(chan struct{}),
	}
}

// Start launches the retry loop.
func (n *Notifier) Start() {
	go n.processRetryQueue()
	utils.InfoLogger.Println("Notifier started")
}

// Stop terminates the retry loop.
func (n *Notifier) Stop() {
	close(n.StopChan)
}

// Notify sends the job right away. Transient failures land on the retry
// queue; the error is still returned so callers can record the attempt.
func (n *Notifier) Notify(job NotifyJob) error {
	n.mutex.Lock()
	n.metrics.TotalQueued++
	n.mutex.Unlock()

	if err := n.send(job); err != nil {
		n.addToRetryQueue(job)
		return err
	}
	return nil
}

func (n *Notifier) send(job NotifyJob) error {
	var err error
	switch job.Channel {
	case ChannelSMS:
		err = n.gateway.SendSMS(job.Recipient, job.Body)
	case ChannelEmail:
		err = n.gateway.SendEmail(job.Recipient, job.Subject, job.Body)
	default:
		return fmt.Errorf("unknown notification channel: %s", job.Channel)
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()
	if err != nil {
		n.metrics.FailedSends++
		return err
	}
	if job.Channel == ChannelSMS {
		n.metrics.SentSMS++
	} else {
		n.metrics.SentEmail++
	}
	return nil
}

func (n *Notifier) addToRetryQueue(job NotifyJob) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	job.Attempts++
	if job.Attempts >= n.maxAttempts {
		utils.ErrorLogger.Printf("Dropping %s notification to %s after %d attempts", job.Channel, job.Recipient, job.Attempts)
		return
	}

	n.retryQueue = append(n.retryQueue, job)
	utils.InfoLogger.Printf("Queued %s notification to %s for retry (attempt %d)", job.Channel, job.Recipient, job.Attempts)
}

func (n *Notifier) processRetryQueue() {
	ticker := time.NewTicker(n.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.drainRetryQueue()
		case <-n.StopChan:
			return
		}
	}
}

// drainRetryQueue resends everything queued since the last tick. Jobs that
// fail again are re-queued until they exhaust their attempts.
func (n *Notifier) drainRetryQueue() {
	n.mutex.Lock()
	if len(n.retryQueue) == 0 {
		n.mutex.Unlock()
		return
	}

	queue := make([]NotifyJob, len(n.retryQueue))
	copy(queue, n.retryQueue)
	n.retryQueue = make([]NotifyJob, 0)
	n.metrics.Retries += int64(len(queue))
	n.mutex.Unlock()

	for _, job := range queue {
		if err := n.send(job); err != nil {
			n.addToRetryQueue(job)
		}
	}
}

// GetMetrics returns a copy of the current counters.
func (n *Notifier) GetMetrics() NotifierMetrics {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.metrics
}

// GatewayConfig holds provider settings for the HTTP gateway.
type GatewayConfig struct {
	SMSBaseURL    string
	SMSAPIKey     string
	SMSSenderName string
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPass      string
	FromEmail     string
}

// HTTPGateway delivers SMS through an HTTP provider and email over SMTP.
type HTTPGateway struct {
	config     *GatewayConfig
	httpClient *http.Client
}

// NewHTTPGateway reads provider settings from the environment.
func NewHTTPGateway() *HTTPGateway {
	smsBaseURL := os.Getenv("SMS_GATEWAY_URL")
	if smsBaseURL == "" {
		smsBaseURL = "https://api.semaphore.co/api/v4/messages"
	}

	senderName := os.Getenv("SMS_SENDER_NAME")
	if senderName == "" {
		senderName = "MANGAN"
	}

	fromEmail := os.Getenv("FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = "orders@mangan.ph"
	}

	return &HTTPGateway{
		config: &GatewayConfig{
			SMSBaseURL:    smsBaseURL,
			SMSAPIKey:     os.Getenv("SMS_API_KEY"),
			SMSSenderName: senderName,
			SMTPHost:      os.Getenv("SMTP_HOST"),
			SMTPPort:      os.Getenv("SMTP_PORT"),
			SMTPUser:      os.Getenv("SMTP_USER"),
			SMTPPass:      os.Getenv("SMTP_PASS"),
			FromEmail:     fromEmail,
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendSMS posts the message to the SMS provider.
func (g *HTTPGateway) SendSMS(to, body string) error {
	form := url.Values{}
	form.Set("apikey", g.config.SMSAPIKey)
	form.Set("number", to)
	form.Set("message", body)
	form.Set("sendername", g.config.SMSSenderName)

	resp, err := g.httpClient.Post(g.config.SMSBaseURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error sending SMS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("SMS provider returned status %d", resp.StatusCode)
	}
	return nil
}

// SendEmail delivers over plain SMTP.
func (g *HTTPGateway) SendEmail(to, subject, body string) error {
	if g.config.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is not configured")
	}

	port := g.config.SMTPPort
	if port == "" {
		port = "587"
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		g.config.FromEmail, to, subject, body)

	var auth smtp.Auth
	if g.config.SMTPUser != "" {
		auth = smtp.PlainAuth("", g.config.SMTPUser, g.config.SMTPPass, g.config.SMTPHost)
	}

	addr := g.config.SMTPHost + ":" + port
	if err := smtp.SendMail(addr, auth, g.config.FromEmail, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	return nil
}

// LogGateway writes messages to the log instead of sending them.
type LogGateway struct{}

func (g *LogGateway) SendSMS(to, body string) error {
	utils.InfoLogger.Printf("[sms] to=%s body=%q", to, body)
	return nil
}

func (g *LogGateway) SendEmail(to, subject, body string) error {
	utils.InfoLogger.Printf("[email] to=%s subject=%q body=%q", to, subject, body)
	return nil
}
