package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/config"
	"github.com/jjdimalanta/mangan-app/live"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/pricing"
	"github.com/jjdimalanta/mangan-app/utils"
)

// ErrAlreadyScheduled means this checkout already has an active reminder
// sequence. Scheduling is idempotent per abandonment.
var ErrAlreadyScheduled = errors.New("reminders already scheduled for this checkout")

// ErrNoContact means the checkout has neither phone nor email.
var ErrNoContact = errors.New("checkout has no reachable contact")

// RecoveryService captures abandoned checkouts and drives their reminder
// sequence: detect idle carts, schedule up to MaxReminders nudges spaced
// Interval apart, clamp each into store hours, dispatch when due and expire
// checkouts nobody came back for.
type RecoveryService struct {
	DB       *gorm.DB
	Config   config.RecoveryConfig
	Notifier *Notifier
	StopChan chan struct{}
	Interval time.Duration
}

func NewRecoveryService(db *gorm.DB, notifier *Notifier) *RecoveryService {
	cfg := config.Recovery()
	return &RecoveryService{
		DB:       db,
		Config:   cfg,
		Notifier: notifier,
		StopChan: make(chan struct{}),
		Interval: cfg.PollInterval,
	}
}

func (rs *RecoveryService) Start() {
	go func() {
		ticker := time.NewTicker(rs.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				now := time.Now()
				rs.scanForAbandoned(now)
				rs.dispatchDueReminders(now)
				rs.expireStale(now)
			case <-rs.StopChan:
				return
			}
		}
	}()
	utils.InfoLogger.Println("Recovery service started")
}

func (rs *RecoveryService) Stop() {
	close(rs.StopChan)
}

// CaptureContact upserts the tracked checkout whenever the storefront form
// has contact info. Repeated captures refresh the snapshot and keep the
// activity timestamp fresh so active customers are never flagged.
func (rs *RecoveryService) CaptureContact(sessionKey, name, phone, email, snapshot string, subtotal float64) (*models.AbandonedCheckout, error) {
	var checkout models.AbandonedCheckout
	err := rs.DB.Where("session_key = ?", sessionKey).First(&checkout).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		checkout = models.AbandonedCheckout{
			SessionKey: sessionKey,
			Name:       name,
			Phone:      phone,
			Email:      email,
			Snapshot:   snapshot,
			Subtotal:   subtotal,
			Status:     models.CheckoutStatusAbandoned,
		}
		if err := rs.DB.Create(&checkout).Error; err != nil {
			return nil, err
		}
		rs.recordEvent(rs.DB, checkout.ID, "contact_captured", fmt.Sprintf("phone=%v email=%v", phone != "", email != ""))
		return &checkout, nil
	}
	if err != nil {
		return nil, err
	}

	// A tracked customer came back and kept shopping. Pending reminders are
	// pointless now; a fresh abandonment restarts the cycle under the same
	// overall reminder budget.
	if checkout.Status == models.CheckoutStatusRecovering {
		if err := rs.skipPendingReminders(rs.DB, checkout.ID); err != nil {
			return nil, err
		}
		rs.recordEvent(rs.DB, checkout.ID, "customer_returned", "pending reminders skipped")
	}

	updates := map[string]interface{}{
		"name":     name,
		"phone":    phone,
		"email":    email,
		"snapshot": snapshot,
		"subtotal": subtotal,
		"status":   models.CheckoutStatusAbandoned,
	}
	if err := rs.DB.Model(&checkout).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

// MarkSeen refreshes the activity timestamp for a tracked session so cart
// activity postpones abandonment detection.
func (rs *RecoveryService) MarkSeen(sessionKey string) {
	rs.DB.Model(&models.AbandonedCheckout{}).
		Where("session_key = ? AND status = ?", sessionKey, models.CheckoutStatusAbandoned).
		UpdateColumn("updated_at", time.Now())
}

// MarkRecovered closes the loop after a successful checkout: remaining
// reminders are skipped and the converting order is linked.
func (rs *RecoveryService) MarkRecovered(sessionKey string, orderID uint) (*models.AbandonedCheckout, error) {
	var checkout models.AbandonedCheckout
	err := rs.DB.Where("session_key = ?", sessionKey).First(&checkout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if checkout.Status == models.CheckoutStatusRecovered {
		return &checkout, nil
	}

	now := time.Now()
	err = rs.DB.Transaction(func(tx *gorm.DB) error {
		if err := rs.skipPendingReminders(tx, checkout.ID); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":             models.CheckoutStatusRecovered,
			"recovered_order_id": orderID,
			"recovered_at":       now,
		}
		if err := tx.Model(&checkout).Updates(updates).Error; err != nil {
			return err
		}
		rs.recordEvent(tx, checkout.ID, "recovered", fmt.Sprintf("order_id=%d", orderID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	checkout.Status = models.CheckoutStatusRecovered
	checkout.RecoveredOrderID = &orderID
	checkout.RecoveredAt = &now
	live.BroadcastCheckoutRecovered(checkout)
	return &checkout, nil
}

// scanForAbandoned promotes idle tracked checkouts into the reminder cycle.
func (rs *RecoveryService) scanForAbandoned(now time.Time) {
	cutoff := now.Add(-rs.Config.AbandonAfter)

	var checkouts []models.AbandonedCheckout
	if err := rs.DB.
		Where("status = ? AND updated_at < ?", models.CheckoutStatusAbandoned, cutoff).
		Limit(50).
		Find(&checkouts).Error; err != nil {
		utils.ErrorLogger.Printf("Error scanning for abandoned checkouts: %v", err)
		return
	}

	for i := range checkouts {
		checkout := &checkouts[i]
		if !checkout.HasContact() {
			continue
		}
		if err := rs.ScheduleReminders(checkout, now); err != nil {
			if !errors.Is(err, ErrAlreadyScheduled) {
				utils.ErrorLogger.Printf("Error scheduling reminders for checkout %d: %v", checkout.ID, err)
			}
			continue
		}
		live.BroadcastCheckoutAbandoned(*checkout)
	}
}

// ScheduleReminders creates the pending reminder rows for one abandonment.
// Reminder k lands Interval after reminder k-1, each pushed forward into
// store hours. The budget counts every reminder that was ever scheduled for
// this checkout, so repeated abandonments cannot exceed MaxReminders sends.
func (rs *RecoveryService) ScheduleReminders(checkout *models.AbandonedCheckout, from time.Time) error {
	if !checkout.HasContact() {
		return ErrNoContact
	}
	if checkout.Status == models.CheckoutStatusRecovering {
		return ErrAlreadyScheduled
	}
	if checkout.Status == models.CheckoutStatusRecovered {
		return fmt.Errorf("checkout %d already recovered", checkout.ID)
	}

	var consumed int64
	if err := rs.DB.Model(&models.AbandonedCheckoutReminder{}).
		Where("checkout_id = ? AND status IN ?", checkout.ID,
			[]string{models.ReminderStatusPending, models.ReminderStatusSent, models.ReminderStatusFailed}).
		Count(&consumed).Error; err != nil {
		return err
	}

	remaining := rs.Config.MaxReminders - int(consumed)
	if remaining <= 0 {
		if err := rs.DB.Model(checkout).Update("status", models.CheckoutStatusExpired).Error; err != nil {
			return err
		}
		checkout.Status = models.CheckoutStatusExpired
		return fmt.Errorf("checkout %d exhausted its reminder budget", checkout.ID)
	}

	openMin, closeMin := rs.storeHours()
	channels := channelPlan(checkout, remaining)

	return rs.DB.Transaction(func(tx *gorm.DB) error {
		t := from
		for i := 0; i < remaining; i++ {
			t = clampToStoreHours(t, openMin, closeMin)
			reminder := models.AbandonedCheckoutReminder{
				CheckoutID:  checkout.ID,
				Sequence:    int(consumed) + i + 1,
				Channel:     channels[i],
				ScheduledAt: t,
				Status:      models.ReminderStatusPending,
			}
			if err := tx.Create(&reminder).Error; err != nil {
				return err
			}
			t = t.Add(rs.Config.Interval)
		}

		if err := tx.Model(checkout).Update("status", models.CheckoutStatusRecovering).Error; err != nil {
			return err
		}
		checkout.Status = models.CheckoutStatusRecovering
		rs.recordEvent(tx, checkout.ID, "reminders_scheduled", fmt.Sprintf("count=%d", remaining))
		return nil
	})
}

// dispatchDueReminders sends every pending reminder whose time has come.
func (rs *RecoveryService) dispatchDueReminders(now time.Time) {
	var reminders []models.AbandonedCheckoutReminder
	if err := rs.DB.Preload("Checkout").
		Where("status = ? AND scheduled_at <= ?", models.ReminderStatusPending, now).
		Order("scheduled_at ASC").
		Limit(100).
		Find(&reminders).Error; err != nil {
		utils.ErrorLogger.Printf("Error fetching due reminders: %v", err)
		return
	}

	for i := range reminders {
		rs.sendReminder(&reminders[i], now)
	}
}

func (rs *RecoveryService) sendReminder(reminder *models.AbandonedCheckoutReminder, now time.Time) {
	checkout := reminder.Checkout

	// The customer may have recovered or returned between scheduling and now.
	if checkout.Status != models.CheckoutStatusRecovering {
		rs.DB.Model(reminder).Update("status", models.ReminderStatusSkipped)
		return
	}

	subject, body := buildReminderMessage(&checkout, reminder.Sequence)
	recipient := checkout.Phone
	if reminder.Channel == models.ReminderChannelEmail {
		recipient = checkout.Email
	}

	err := rs.Notifier.Notify(NotifyJob{
		Channel:   reminder.Channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})

	status := models.ReminderStatusSent
	if err != nil {
		status = models.ReminderStatusFailed
		utils.ErrorLogger.Printf("Reminder %d for checkout %d failed: %v", reminder.Sequence, checkout.ID, err)
	}

	updates := map[string]interface{}{
		"status":  status,
		"sent_at": now,
	}
	if err := rs.DB.Model(reminder).Updates(updates).Error; err != nil {
		utils.ErrorLogger.Printf("Error updating reminder %d: %v", reminder.ID, err)
		return
	}

	// Touch the checkout so expiry counts from the last send.
	rs.DB.Model(&models.AbandonedCheckout{}).Where("id = ?", checkout.ID).
		UpdateColumn("updated_at", now)
	rs.recordEvent(rs.DB, checkout.ID, "reminder_"+status,
		fmt.Sprintf("sequence=%d channel=%s", reminder.Sequence, reminder.Channel))
}

// expireStale closes recovering checkouts whose reminders are all done and
// whose last activity is older than one more interval.
func (rs *RecoveryService) expireStale(now time.Time) {
	cutoff := now.Add(-rs.Config.Interval)

	var checkouts []models.AbandonedCheckout
	if err := rs.DB.
		Where("status = ? AND updated_at < ?", models.CheckoutStatusRecovering, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM abandoned_checkout_reminders r WHERE r.checkout_id = abandoned_checkouts.id AND r.status = ?)",
			models.ReminderStatusPending).
		Limit(50).
		Find(&checkouts).Error; err != nil {
		utils.ErrorLogger.Printf("Error scanning for expired checkouts: %v", err)
		return
	}

	for i := range checkouts {
		checkout := &checkouts[i]
		if err := rs.DB.Model(checkout).Update("status", models.CheckoutStatusExpired).Error; err != nil {
			utils.ErrorLogger.Printf("Error expiring checkout %d: %v", checkout.ID, err)
			continue
		}
		rs.recordEvent(rs.DB, checkout.ID, "expired", "no recovery after final reminder")
	}
}

// storeHours reads the configured open-close window, defaulting to
// 10:00-21:00 when the setting is absent or malformed.
func (rs *RecoveryService) storeHours() (int, int) {
	const defaultOpen, defaultClose = 10 * 60, 21 * 60

	var setting models.Setting
	if err := rs.DB.Where("`key` = ?", models.SettingStoreHours).First(&setting).Error; err != nil {
		return defaultOpen, defaultClose
	}

	open, close, err := ParseStoreHours(setting.Value)
	if err != nil {
		utils.ErrorLogger.Printf("Malformed %s setting %q: %v", models.SettingStoreHours, setting.Value, err)
		return defaultOpen, defaultClose
	}
	return open, close
}

// ParseStoreHours parses "10:00-21:00" into open and close minutes of day.
func ParseStoreHours(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM-HH:MM, got %q", value)
	}

	open, err := parseClockMinutes(parts[0])
	if err != nil {
		return 0, 0, err
	}
	close, err := parseClockMinutes(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if close <= open {
		return 0, 0, fmt.Errorf("closing time %q is not after opening time %q", parts[1], parts[0])
	}
	return open, close, nil
}

func parseClockMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

// clampToStoreHours pushes t forward into the open window: before opening
// moves to today's opening, at or after closing moves to tomorrow's opening.
func clampToStoreHours(t time.Time, openMin, closeMin int) time.Time {
	minutes := t.Hour()*60 + t.Minute()
	openAt := time.Date(t.Year(), t.Month(), t.Day(), openMin/60, openMin%60, 0, 0, t.Location())

	if minutes < openMin {
		return openAt
	}
	if minutes >= closeMin {
		return openAt.AddDate(0, 0, 1)
	}
	return t
}

// channelPlan alternates sms and email when both contacts exist, starting
// with sms. Single-channel customers get every reminder on that channel.
func channelPlan(checkout *models.AbandonedCheckout, n int) []string {
	both := checkout.Phone != "" && checkout.Email != ""
	out := make([]string, n)
	for i := range out {
		switch {
		case both && i%2 == 0:
			out[i] = models.ReminderChannelSMS
		case both:
			out[i] = models.ReminderChannelEmail
		case checkout.Phone != "":
			out[i] = models.ReminderChannelSMS
		default:
			out[i] = models.ReminderChannelEmail
		}
	}
	return out
}

func buildReminderMessage(checkout *models.AbandonedCheckout, sequence int) (string, string) {
	itemCount := 0
	if cart, err := pricing.DecodeSnapshot(checkout.Snapshot); err == nil {
		itemCount = cart.ItemCount()
	}

	link := storefrontURL() + "/cart?session=" + checkout.SessionKey + "&welcome=1"

	name := checkout.Name
	if name == "" {
		name = "there"
	}

	subject := "You left something in your cart"
	body := fmt.Sprintf("Hi %s! You have %d item(s) worth %s waiting in your cart. Finish your order here: %s",
		name, itemCount, utils.FormatCurrencyPHP(checkout.Subtotal), link)
	if sequence >= 3 {
		subject = "Last chance: your cart is about to expire"
		body = fmt.Sprintf("Hi %s! This is our last reminder, your %d item(s) worth %s will expire soon. Order now: %s",
			name, itemCount, utils.FormatCurrencyPHP(checkout.Subtotal), link)
	}
	return subject, body
}

func storefrontURL() string {
	if url := os.Getenv("STOREFRONT_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:5173"
}

func (rs *RecoveryService) skipPendingReminders(tx *gorm.DB, checkoutID uint) error {
	return tx.Model(&models.AbandonedCheckoutReminder{}).
		Where("checkout_id = ? AND status = ?", checkoutID, models.ReminderStatusPending).
		Update("status", models.ReminderStatusSkipped).Error
}

func (rs *RecoveryService) recordEvent(tx *gorm.DB, checkoutID uint, eventType, detail string) {
	event := models.AbandonedCheckoutEvent{
		CheckoutID: checkoutID,
		EventType:  eventType,
		Detail:     detail,
	}
	if err := tx.Create(&event).Error; err != nil {
		utils.ErrorLogger.Printf("Error recording checkout event %s: %v", eventType, err)
	}
}
