package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

func setupRecoveryDB(t *testing.T, name string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Setting{},
		&models.AbandonedCheckout{},
		&models.AbandonedCheckoutEvent{},
		&models.AbandonedCheckoutReminder{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.Create(&models.Setting{Key: models.SettingStoreHours, Value: "10:00-21:00"})
	return db
}

func newTestRecoveryService(db *gorm.DB) (*RecoveryService, *fakeGateway) {
	gw := &fakeGateway{}
	return NewRecoveryService(db, NewNotifier(gw)), gw
}

func captureTestCheckout(t *testing.T, rs *RecoveryService, session string) *models.AbandonedCheckout {
	checkout, err := rs.CaptureContact(session, "Ana Cruz", "09171234567", "ana@example.ph", `{"lines":[]}`, 499)
	assert.NoError(t, err)
	return checkout
}

func TestScheduleRemindersSpacingAndStoreHours(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_spacing")
	rs, _ := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-spacing")

	from := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)
	assert.NoError(t, rs.ScheduleReminders(checkout, from))

	var reminders []models.AbandonedCheckoutReminder
	assert.NoError(t, db.Where("checkout_id = ?", checkout.ID).Order("sequence ASC").Find(&reminders).Error)
	assert.Len(t, reminders, 3)

	openMin, closeMin := 10*60, 21*60
	for i, r := range reminders {
		assert.Equal(t, i+1, r.Sequence)
		assert.Equal(t, models.ReminderStatusPending, r.Status)

		minutes := r.ScheduledAt.Hour()*60 + r.ScheduledAt.Minute()
		assert.GreaterOrEqual(t, minutes, openMin, "reminder %d before opening", r.Sequence)
		assert.Less(t, minutes, closeMin, "reminder %d after closing", r.Sequence)

		if i > 0 {
			gap := r.ScheduledAt.Sub(reminders[i-1].ScheduledAt)
			assert.GreaterOrEqual(t, gap, rs.Config.Interval, "reminder %d too close to previous", r.Sequence)
		}
	}

	// Both contacts present: sms first, then alternating.
	assert.Equal(t, models.ReminderChannelSMS, reminders[0].Channel)
	assert.Equal(t, models.ReminderChannelEmail, reminders[1].Channel)
	assert.Equal(t, models.ReminderChannelSMS, reminders[2].Channel)
}

func TestScheduleRemindersIsIdempotent(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_idem")
	rs, _ := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-idem")
	from := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)

	assert.NoError(t, rs.ScheduleReminders(checkout, from))
	err := rs.ScheduleReminders(checkout, from)
	assert.True(t, errors.Is(err, ErrAlreadyScheduled))

	var count int64
	db.Model(&models.AbandonedCheckoutReminder{}).Where("checkout_id = ?", checkout.ID).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestScheduleRemindersClampsAcrossClosing(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_clamp")
	rs, _ := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-clamp")

	// 20:30 start: the second reminder (23:30) must jump to next day 10:00.
	from := time.Date(2026, 3, 2, 20, 30, 0, 0, time.Local)
	assert.NoError(t, rs.ScheduleReminders(checkout, from))

	var reminders []models.AbandonedCheckoutReminder
	db.Where("checkout_id = ?", checkout.ID).Order("sequence ASC").Find(&reminders)
	assert.Len(t, reminders, 3)

	assert.WithinDuration(t, from, reminders[0].ScheduledAt, time.Second)
	assert.WithinDuration(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.Local), reminders[1].ScheduledAt, time.Second)
	assert.WithinDuration(t, time.Date(2026, 3, 3, 13, 0, 0, 0, time.Local), reminders[2].ScheduledAt, time.Second)
}

func TestScheduleRemindersBeforeOpeningMovesToOpen(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_early")
	rs, _ := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-early")

	from := time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)
	assert.NoError(t, rs.ScheduleReminders(checkout, from))

	var first models.AbandonedCheckoutReminder
	db.Where("checkout_id = ? AND sequence = 1", checkout.ID).First(&first)
	assert.WithinDuration(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), first.ScheduledAt, time.Second)
}

func TestScheduleRemindersRequiresContact(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_nocontact")
	rs, _ := newTestRecoveryService(db)

	checkout := &models.AbandonedCheckout{SessionKey: "sess-none", Snapshot: "{}", Status: models.CheckoutStatusAbandoned}
	db.Create(checkout)

	err := rs.ScheduleReminders(checkout, time.Now())
	assert.True(t, errors.Is(err, ErrNoContact))
}

func TestDispatchDueRemindersSendsAndRecords(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_dispatch")
	rs, gw := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-dispatch")

	from := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)
	assert.NoError(t, rs.ScheduleReminders(checkout, from))

	// Only the first reminder is due at from; the rest sit 3h+ out.
	rs.dispatchDueReminders(from.Add(time.Minute))

	var reminders []models.AbandonedCheckoutReminder
	db.Where("checkout_id = ?", checkout.ID).Order("sequence ASC").Find(&reminders)
	assert.Equal(t, models.ReminderStatusSent, reminders[0].Status)
	assert.NotNil(t, reminders[0].SentAt)
	assert.Equal(t, models.ReminderStatusPending, reminders[1].Status)
	assert.Equal(t, models.ReminderStatusPending, reminders[2].Status)

	gw.mu.Lock()
	sent := len(gw.sms)
	gw.mu.Unlock()
	assert.Equal(t, 1, sent)
}

func TestMarkRecoveredSkipsPendingReminders(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_recovered")
	rs, _ := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-recovered")
	assert.NoError(t, rs.ScheduleReminders(checkout, time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)))

	recovered, err := rs.MarkRecovered("sess-recovered", 42)
	assert.NoError(t, err)
	assert.NotNil(t, recovered)
	assert.Equal(t, models.CheckoutStatusRecovered, recovered.Status)
	assert.NotNil(t, recovered.RecoveredOrderID)
	assert.EqualValues(t, 42, *recovered.RecoveredOrderID)

	var pending int64
	db.Model(&models.AbandonedCheckoutReminder{}).
		Where("checkout_id = ? AND status = ?", checkout.ID, models.ReminderStatusPending).
		Count(&pending)
	assert.Zero(t, pending)

	var skipped int64
	db.Model(&models.AbandonedCheckoutReminder{}).
		Where("checkout_id = ? AND status = ?", checkout.ID, models.ReminderStatusSkipped).
		Count(&skipped)
	assert.EqualValues(t, 3, skipped)
}

func TestMarkRecoveredUnknownSessionIsNoop(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_unknown")
	rs, _ := newTestRecoveryService(db)

	checkout, err := rs.MarkRecovered("never-seen", 7)
	assert.NoError(t, err)
	assert.Nil(t, checkout)
}

func TestReminderBudgetHoldsAcrossAbandonmentCycles(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_budget")
	rs, _ := newTestRecoveryService(db)

	checkout := captureTestCheckout(t, rs, "sess-budget")

	from := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)
	assert.NoError(t, rs.ScheduleReminders(checkout, from))

	// All three go out.
	rs.dispatchDueReminders(from.AddDate(0, 0, 2))

	// Customer comes back, shops again, abandons again.
	again, err := rs.CaptureContact("sess-budget", "Ana Cruz", "09171234567", "ana@example.ph", `{"lines":[]}`, 250)
	assert.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusAbandoned, again.Status)

	err = rs.ScheduleReminders(again, from.AddDate(0, 0, 3))
	assert.Error(t, err, "budget exhausted, no fourth reminder")

	var total int64
	db.Model(&models.AbandonedCheckoutReminder{}).Where("checkout_id = ?", checkout.ID).Count(&total)
	assert.EqualValues(t, 3, total, "never more than MaxReminders reminder rows")
}

func TestCaptureContactRefreshesTrackedCheckout(t *testing.T) {
	utils.InitLogger()
	db := setupRecoveryDB(t, "recovery_refresh")
	rs, _ := newTestRecoveryService(db)

	first := captureTestCheckout(t, rs, "sess-refresh")
	second, err := rs.CaptureContact("sess-refresh", "Ana C.", "09179998888", "", `{"lines":[{"id":"x"}]}`, 750)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same session stays one row")

	var stored models.AbandonedCheckout
	db.First(&stored, first.ID)
	assert.Equal(t, "09179998888", stored.Phone)
	assert.InDelta(t, 750, stored.Subtotal, 1e-9)
}

func TestChannelPlan(t *testing.T) {
	tests := []struct {
		name     string
		checkout models.AbandonedCheckout
		want     []string
	}{
		{
			name:     "both contacts alternate starting sms",
			checkout: models.AbandonedCheckout{Phone: "0917", Email: "a@b.ph"},
			want:     []string{"sms", "email", "sms"},
		},
		{
			name:     "phone only",
			checkout: models.AbandonedCheckout{Phone: "0917"},
			want:     []string{"sms", "sms", "sms"},
		},
		{
			name:     "email only",
			checkout: models.AbandonedCheckout{Email: "a@b.ph"},
			want:     []string{"email", "email", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, channelPlan(&tt.checkout, 3))
		})
	}
}

func TestParseStoreHours(t *testing.T) {
	tests := []struct {
		value     string
		wantOpen  int
		wantClose int
		wantErr   bool
	}{
		{"10:00-21:00", 600, 1260, false},
		{"08:30-22:15", 510, 1335, false},
		{"10:00", 0, 0, true},
		{"21:00-10:00", 0, 0, true},
		{"aa:bb-cc:dd", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			open, close, err := ParseStoreHours(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantClose, close)
		})
	}
}

func TestClampToStoreHours(t *testing.T) {
	open, close := 10*60, 21*60
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"inside window unchanged", day.Add(14 * time.Hour), day.Add(14 * time.Hour)},
		{"before opening moves to open", day.Add(7 * time.Hour), day.Add(10 * time.Hour)},
		{"after closing moves to next open", day.Add(22 * time.Hour), day.AddDate(0, 0, 1).Add(10 * time.Hour)},
		{"exactly at closing moves forward", day.Add(21 * time.Hour), day.AddDate(0, 0, 1).Add(10 * time.Hour)},
		{"exactly at opening unchanged", day.Add(10 * time.Hour), day.Add(10 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampToStoreHours(tt.at, open, close))
		})
	}
}
