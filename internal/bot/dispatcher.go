// Package bot routes inbound platform updates to the gating engine. The
// dispatcher owns the conversational surface: commands, inline-button
// callbacks, and the admin verbs. It renders outcomes as messages through the
// platform sender; all state transitions live in the services it delegates
// to.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/services"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// Callback data values bound to the inline buttons.
const (
	cbCheckMembership = "check_membership"
	cbVerifyShares    = "verify_shares"
	cbGetPrediction   = "get_prediction"
	cbRequestLive     = "request_live"
)

// Dispatcher wires inbound updates to the services.
type Dispatcher struct {
	Eligibility *services.EligibilityService
	Referrals   *services.ReferralService
	Broadcast   *services.BroadcastService
	Live        *services.LiveRequestService
	Predictions *services.PredictionService
	Notifier    *services.AdminNotifier

	Gateway *storage.Gateway
	Sender  platform.Sender

	// Channel is shown to users asked to join.
	Channel string
	// BotName builds the personal invite link handed to users.
	BotName string

	Log zerolog.Logger

	// composeMu guards composing: admins who issued /broadcast with no body
	// and whose next message becomes the broadcast payload.
	composeMu sync.Mutex
	composing map[int64]bool
}

// HandleUpdate routes one inbound update. Unknown commands and callbacks are
// logged and dropped; routing never panics the caller.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u platform.Update) {
	switch {
	case u.Message != nil:
		d.handleMessage(ctx, u.Message)
	case u.Callback != nil:
		d.handleCallback(ctx, u.Callback)
	default:
		updatesTotal.WithLabelValues("other", "dropped").Inc()
		d.Log.Debug().Int64("update_id", u.UpdateID).Msg("update carries no message or callback")
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, m *platform.IncomingMessage) {
	cmd, arg := splitCommand(m.Text)
	if !strings.HasPrefix(cmd, "/") {
		// Not a command: only meaningful when the sender has the broadcast
		// composer armed, in which case the message is the payload.
		if d.disarmCompose(m.From.ID) {
			d.report("message", "/broadcast", m.From.ID,
				d.OnAdminBroadcast(ctx, m.From.ID, m.BroadcastPayload()))
			return
		}
		updatesTotal.WithLabelValues("message", "dropped").Inc()
		d.Log.Debug().Int64("user_id", m.From.ID).Msg("message without a command")
		return
	}

	var err error
	switch cmd {
	case "/start":
		err = d.OnStart(ctx, m.From, arg)
	case "/broadcast":
		if arg == "" {
			err = d.OnAdminCompose(ctx, m.From.ID)
		} else {
			err = d.OnAdminBroadcast(ctx, m.From.ID, platform.Payload{Kind: platform.KindText, Text: arg})
		}
	case "/users":
		err = d.OnAdminUsers(ctx, m.From.ID)
	case "/requests":
		err = d.OnAdminRequests(ctx, m.From.ID)
	case "/clear":
		err = d.OnAdminClear(ctx, m.From.ID)
	default:
		updatesTotal.WithLabelValues("message", "dropped").Inc()
		d.Log.Debug().Str("command", cmd).Int64("user_id", m.From.ID).Msg("unknown command")
		return
	}
	d.report("message", cmd, m.From.ID, err)
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *platform.CallbackQuery) {
	var err error
	switch cb.Data {
	case cbCheckMembership, cbVerifyShares:
		err = d.OnVerify(ctx, cb.From)
	case cbGetPrediction:
		err = d.OnPredict(ctx, cb.From.ID)
	case cbRequestLive:
		err = d.OnRequestLive(ctx, cb.From)
	default:
		updatesTotal.WithLabelValues("callback", "dropped").Inc()
		d.Log.Debug().Str("data", cb.Data).Int64("user_id", cb.From.ID).Msg("unknown callback")
		return
	}
	d.report("callback", cb.Data, cb.From.ID, err)
}

func (d *Dispatcher) report(kind, action string, userID int64, err error) {
	if err != nil {
		updatesTotal.WithLabelValues(kind, "error").Inc()
		d.Log.Error().Err(err).Str("action", action).Int64("user_id", userID).Msg("update handling failed")
		return
	}
	updatesTotal.WithLabelValues(kind, "ok").Inc()
}

// OnStart handles /start. A numeric start parameter is a referral
// attribution; it is recorded as pending before the user's status is
// resolved, so a brand-new member gets credited on their very first
// verification.
func (d *Dispatcher) OnStart(ctx context.Context, from platform.UserInfo, param string) error {
	if referrerID, err := strconv.ParseInt(param, 10, 64); err == nil {
		if _, err := d.Referrals.RegisterPending(ctx, referrerID, from.ID); err != nil {
			// Attribution is best-effort: the user still gets onboarded.
			d.Log.Warn().Err(err).Int64("user_id", from.ID).Msg("pending referral not recorded")
		}
	}

	d.Eligibility.Invalidate(from.ID)
	st := d.Eligibility.Resolve(ctx, from.ID)
	switch {
	case d.Eligibility.Eligible(st):
		if _, err := d.Referrals.SaveUserIfEligible(ctx, from); err != nil {
			return err
		}
		return d.sendMenu(ctx, from.ID, st)
	case !st.IsMember:
		return d.Sender.SendMessage(ctx, from.ID, d.joinPrompt())
	default:
		return d.Sender.SendMessage(ctx, from.ID, d.sharePrompt(from.ID, st))
	}
}

// OnVerify re-checks the user after a verification button press. Membership
// confirmation is the referral trigger: the user's pending attribution, if
// any, is promoted the first time they verify as a member.
func (d *Dispatcher) OnVerify(ctx context.Context, from platform.UserInfo) error {
	d.Eligibility.Invalidate(from.ID)
	st := d.Eligibility.Resolve(ctx, from.ID)

	if st.IsMember {
		if _, _, err := d.Referrals.ConfirmPending(ctx, from.ID); err != nil {
			return err
		}
		// Confirmation may have changed the counts; resolve once more.
		st = d.Eligibility.Resolve(ctx, from.ID)
	}

	switch {
	case d.Eligibility.Eligible(st):
		if _, err := d.Referrals.SaveUserIfEligible(ctx, from); err != nil {
			return err
		}
		return d.sendMenu(ctx, from.ID, st)
	case !st.IsMember:
		return d.Sender.SendMessage(ctx, from.ID, "You have not joined the channel yet. "+d.joinPrompt())
	default:
		return d.Sender.SendMessage(ctx, from.ID, d.sharePrompt(from.ID, st))
	}
}

// OnPredict hands out a prediction to an eligible user, enforcing the
// cooldown.
func (d *Dispatcher) OnPredict(ctx context.Context, userID int64) error {
	st := d.Eligibility.Resolve(ctx, userID)
	if !d.Eligibility.Eligible(st) {
		return d.Sender.SendMessage(ctx, userID, "Complete the steps first: join the channel and invite your friends.")
	}

	p, err := d.Predictions.Predict(userID)
	var cd *services.CooldownError
	if errors.As(err, &cd) {
		return d.Sender.SendMessage(ctx, userID,
			fmt.Sprintf("Easy there! Next signal in %d seconds.", int(cd.Remaining.Seconds())))
	}
	if err != nil {
		return err
	}
	return d.Sender.SendMessage(ctx, userID, fmt.Sprintf(
		"Signal for %s\nCoefficient: x%.2f\nSafe exit: x%.2f", p.At, p.Coefficient, p.Assurance))
}

// OnRequestLive files a live session request for an eligible user and pings
// the admins.
func (d *Dispatcher) OnRequestLive(ctx context.Context, from platform.UserInfo) error {
	st := d.Eligibility.Resolve(ctx, from.ID)
	if !d.Eligibility.Eligible(st) {
		return d.Sender.SendMessage(ctx, from.ID, "Complete the steps first: join the channel and invite your friends.")
	}

	total, err := d.Live.Request(ctx, from.ID)
	if errors.Is(err, services.ErrDuplicateLiveRequest) {
		return d.Sender.SendMessage(ctx, from.ID, "Your live request is already in the queue.")
	}
	if err != nil {
		return err
	}

	if nerr := d.Notifier.NotifyAll(ctx, fmt.Sprintf(
		"Live request from %s (id %d). Outstanding: %d.", displayName(from), from.ID, total)); nerr != nil {
		d.Log.Warn().Err(nerr).Msg("admin notification failed")
	}
	return d.Sender.SendMessage(ctx, from.ID, "Got it! You will be notified when the live session starts.")
}

// OnAdminCompose arms the broadcast composer for an admin: their next
// message, whether text, photo, voice, or sticker, is fanned out as the
// broadcast payload. The composer is one-shot per arming.
func (d *Dispatcher) OnAdminCompose(ctx context.Context, adminID int64) error {
	if err := d.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	d.composeMu.Lock()
	if d.composing == nil {
		d.composing = make(map[int64]bool)
	}
	d.composing[adminID] = true
	d.composeMu.Unlock()
	return d.Sender.SendMessage(ctx, adminID, "Send the text, photo, voice, or sticker to broadcast.")
}

// disarmCompose consumes the armed composer for userID, reporting whether it
// was armed.
func (d *Dispatcher) disarmCompose(userID int64) bool {
	d.composeMu.Lock()
	defer d.composeMu.Unlock()
	if !d.composing[userID] {
		return false
	}
	delete(d.composing, userID)
	return true
}

// OnAdminBroadcast fans payload out to every saved user. Non-admin callers
// get ErrUnauthorized; the caller receives a delivery summary when the run
// completes.
func (d *Dispatcher) OnAdminBroadcast(ctx context.Context, adminID int64, payload platform.Payload) error {
	if err := d.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if payload.Kind == platform.KindText && strings.TrimSpace(payload.Text) == "" {
		return d.Sender.SendMessage(ctx, adminID, "Usage: /broadcast <message>")
	}

	var candidates []int64
	if err := d.Gateway.Read(ctx, func(db *gorm.DB) error {
		var e error
		candidates, e = repo.ListUserIDs(ctx, db)
		return e
	}); err != nil {
		return err
	}

	success, failure, err := d.Broadcast.Broadcast(ctx, candidates, payload.SendVia(d.Sender))
	if err != nil {
		return err
	}
	return d.Sender.SendMessage(ctx, adminID, fmt.Sprintf(
		"Broadcast done: %d delivered, %d failed, %d candidates.", success, failure, len(candidates)))
}

// OnAdminUsers reports the saved-user roster to an admin: the total count
// plus the ten most recent sign-ups.
func (d *Dispatcher) OnAdminUsers(ctx context.Context, adminID int64) error {
	if err := d.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	var (
		total int64
		users []domain.User
	)
	if err := d.Gateway.Read(ctx, func(db *gorm.DB) error {
		var e error
		if total, e = repo.CountUsers(ctx, db); e != nil {
			return e
		}
		users, e = repo.ListUsers(ctx, db)
		return e
	}); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Saved users: %d", total)
	if len(users) > 10 {
		users = users[len(users)-10:]
	}
	for _, u := range users {
		fmt.Fprintf(&b, "\n- %s", displayName(platform.UserInfo{
			ID: u.UserID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName,
		}))
	}
	return d.Sender.SendMessage(ctx, adminID, b.String())
}

// OnAdminRequests lists the outstanding live requests, newest first.
func (d *Dispatcher) OnAdminRequests(ctx context.Context, adminID int64) error {
	if err := d.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	ids, err := d.Live.Pending(ctx, 50)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return d.Sender.SendMessage(ctx, adminID, "No outstanding live requests.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Outstanding live requests (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "- %d\n", id)
	}
	return d.Sender.SendMessage(ctx, adminID, b.String())
}

// OnAdminClear drops all outstanding live requests.
func (d *Dispatcher) OnAdminClear(ctx context.Context, adminID int64) error {
	if err := d.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	dropped, err := d.Live.Clear(ctx)
	if err != nil {
		return err
	}
	return d.Sender.SendMessage(ctx, adminID, fmt.Sprintf("Cleared %d live requests.", dropped))
}

// requireAdmin rejects non-admin callers with ErrUnauthorized. The check is
// always fresh, never cached.
func (d *Dispatcher) requireAdmin(ctx context.Context, userID int64) error {
	var isAdmin bool
	err := d.Gateway.Read(ctx, func(db *gorm.DB) error {
		var e error
		isAdmin, e = repo.IsAdmin(ctx, db, userID)
		return e
	})
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("%w: user %d", services.ErrUnauthorized, userID)
	}
	return nil
}

func (d *Dispatcher) sendMenu(ctx context.Context, userID int64, st services.Status) error {
	return d.Sender.SendMessage(ctx, userID, fmt.Sprintf(
		"You are all set! Referrals: %d. Tap the buttons below for a signal or a live session.", st.ReferralCount))
}

func (d *Dispatcher) joinPrompt() string {
	return fmt.Sprintf("Join %s to unlock signals, then tap Verify.", d.Channel)
}

func (d *Dispatcher) sharePrompt(userID int64, st services.Status) string {
	need := d.Eligibility.SharesRequired - st.ReferralCount
	return fmt.Sprintf("Invite %d more friend(s) with your personal link:\nhttps://t.me/%s?start=%d",
		need, d.BotName, userID)
}

// splitCommand splits "/cmd arg rest" into the command and its argument
// string. The @botname suffix on commands is stripped.
func splitCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	cmd, arg, _ = strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(arg)
}

func displayName(u platform.UserInfo) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}
