package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/tez-capital/trialbot/keystore"
	"github.com/tez-capital/trialbot/metrics"
	"github.com/tez-capital/trialbot/ratelimit"
	"github.com/tez-capital/trialbot/trial"
)

const (
	MsgGenericError   = "There was an error processing your request."
	MsgNoFileReceived = "No file received."
)

type Options struct {
	ManagementChannelID string        // admin actions are refused elsewhere when set
	UploadTimeout       time.Duration // announced in the upload prompt
	Metrics             *metrics.Metrics
	Now                 func() time.Time
}

// Handler is built once at startup and shared by every interaction.
type Handler struct {
	keys    *keystore.Keystore
	policy  *trial.Policy
	limiter *ratelimit.Limiter
	opts    Options
	log     *slog.Logger
}

func NewHandler(keys *keystore.Keystore, policy *trial.Policy, limiter *ratelimit.Limiter, opts Options, l *slog.Logger) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	return &Handler{keys: keys, policy: policy, limiter: limiter, opts: opts, log: l}
}

// ManagementPanel renders the admin panel with current counts.
func (h *Handler) ManagementPanel() Panel {
	return ManagementPanel(h.keys.Codes.CountUnused(), h.keys.Codes.CountIssued())
}

// UploadTimeout is how long the adapter should wait for a key file.
func (h *Handler) UploadTimeout() time.Duration { return h.opts.UploadTimeout }

// Handle dispatches one interaction. Unknown ids yield an empty response.
func (h *Handler) Handle(ev Event) Response {
	if ev.Kind == ButtonPress && ev.ID == ActionRequestTrial {
		return h.requestTrial(ev.UserID)
	}
	if !h.isAdminAction(ev) {
		h.log.Debug("ignoring unknown interaction", "id", ev.ID, "kind", ev.Kind)
		return Response{}
	}
	if h.opts.ManagementChannelID != "" && ev.ChannelID != h.opts.ManagementChannelID {
		h.log.Warn("admin action outside management channel", "id", ev.ID, "user", ev.UserID, "channel", ev.ChannelID)
		return text("This action is only available in the management channel.")
	}

	h.opts.Metrics.AdminAction(ev.ID)
	if ev.Kind == ButtonPress {
		return h.button(ev)
	}
	return h.form(ev)
}

func (h *Handler) isAdminAction(ev Event) bool {
	switch ev.Kind {
	case ButtonPress:
		return slices.Contains([]string{
			ActionViewKeys, ActionAddKey, ActionBulkAdd, ActionUploadKeys,
			ActionDeleteKey, ActionViewUsed, ActionWipeKeys, ActionSecondChance,
		}, ev.ID)
	case FormSubmit:
		return slices.Contains([]string{
			FormAddKey, FormBulkAdd, FormDeleteKey, FormWipeConfirm, FormSecondChance,
		}, ev.ID)
	}
	return false
}

func (h *Handler) requestTrial(user string) Response {
	now := h.opts.Now()
	if !h.limiter.Allow(user, now) {
		h.opts.Metrics.TrialRequest("rate_limited")
		mins := max(h.limiter.RemainingMinutes(user, now), 1)
		return text(fmt.Sprintf("You are making too many requests. Please try again in %d minutes.", mins))
	}

	out := h.policy.Allocate(user)
	h.opts.Metrics.TrialRequest(out.Kind.String())
	h.log.Info("trial request", "user", user, "outcome", out.Kind, "second_chance", out.SecondChance, "whitelisted", out.Whitelisted)

	switch out.Kind {
	case trial.AlreadyUsed:
		return text("You've already used your trial codes:\n" + strings.Join(out.Previous, "\n"))
	case trial.NoCodes:
		return text("Sorry, there are no trial codes available at the moment.")
	}

	msg := "Here's your trial code: " + out.Code
	if out.SecondChance {
		msg += "\n(Second Chance Code)"
	}
	return Response{Text: msg, RefreshPanel: !out.Whitelisted}
}

func (h *Handler) button(ev Event) Response {
	switch ev.ID {
	case ActionViewKeys:
		codes := h.keys.Codes.ListUnused()
		if len(codes) == 0 {
			return text("No keys available.")
		}
		return Response{Pages: paginate("Available Keys", ColorBlue, codes, "\n")}

	case ActionViewUsed:
		used := h.keys.Codes.Issued()
		users := lo.Keys(used)
		slices.Sort(users)
		if len(users) == 0 {
			return text("No keys have been used yet.")
		}
		entries := lo.Map(users, func(u string, _ int) string {
			return fmt.Sprintf("User: <@%s>\nCode: %s", u, used[u])
		})
		return Response{Pages: paginate("Used Keys", ColorOrange, entries, "\n\n")}

	case ActionAddKey:
		return Response{Form: singleInputForm(FormAddKey, "Add New Trial Key", "Enter the trial key", "TRIAL-XXXX-XXXX-XXXX")}

	case ActionBulkAdd:
		f := singleInputForm(FormBulkAdd, "Bulk Add Trial Keys", "Enter keys (separated by commas or newlines)",
			"TRIAL-XXXX-XXXX-XXXX\nTRIAL-YYYY-YYYY-YYYY\nOr use commas to separate")
		f.Inputs[0].Paragraph = true
		return Response{Form: f}

	case ActionDeleteKey:
		return Response{Form: singleInputForm(FormDeleteKey, "Delete Trial Key", "Enter the trial key to delete", "TRIAL-XXXX-XXXX-XXXX")}

	case ActionWipeKeys:
		return Response{Form: singleInputForm(FormWipeConfirm, "Confirm Wipe All Keys",
			fmt.Sprintf("Type %q to wipe all unused keys", WipeConfirmation), WipeConfirmation)}

	case ActionSecondChance:
		return Response{Form: singleInputForm(FormSecondChance, "Give Second Chance", "Enter Discord User ID", "123456789012345678")}

	case ActionUploadKeys:
		return Response{
			Text: fmt.Sprintf("Upload a .txt file with your keys (one per line or comma separated) in this channel within %d seconds.",
				int(h.opts.UploadTimeout.Seconds())),
			AwaitUpload: true,
		}
	}
	return Response{}
}

func (h *Handler) form(ev Event) Response {
	switch ev.ID {
	case FormAddKey:
		key := strings.TrimSpace(ev.Fields[FieldKey])
		if !h.keys.Codes.AddOne(key) {
			return Response{Text: "Key already exists!"}
		}
		h.log.Info("key added", "by", ev.UserID)
		return Response{Text: "Successfully added key: " + key, RefreshPanel: true}

	case FormBulkAdd:
		return h.ImportKeys(ev.UserID, ev.Fields[FieldKeys])

	case FormDeleteKey:
		key := strings.TrimSpace(ev.Fields[FieldKey])
		if !h.keys.Codes.Delete(key) {
			return Response{Text: "Key not found!"}
		}
		h.log.Info("key deleted", "by", ev.UserID)
		return Response{Text: "Successfully deleted key: " + key, RefreshPanel: true}

	case FormWipeConfirm:
		if ev.Fields[FieldConfirm] != WipeConfirmation {
			return text("Operation cancelled - confirmation text did not match.")
		}
		n := h.keys.Codes.WipeUnused()
		h.log.Warn("unused keys wiped", "by", ev.UserID, "count", n)
		return Response{Text: fmt.Sprintf("Successfully wiped %d unused keys!", n), RefreshPanel: true}

	case FormSecondChance:
		user := strings.TrimSpace(ev.Fields[FieldUser])
		if user == "" {
			return text("No user ID provided.")
		}
		if !h.keys.SecondChances.Grant(user) {
			return Response{Text: "User already has a second chance!"}
		}
		h.log.Info("second chance granted", "user", user, "by", ev.UserID)
		return Response{Text: fmt.Sprintf("Successfully gave second chance to <@%s>", user), RefreshPanel: true}
	}
	return Response{}
}

// ImportKeys bulk-adds the keys found in raw (form text or uploaded file).
func (h *Handler) ImportKeys(by, raw string) Response {
	keys := ParseKeys(raw)
	if len(keys) == 0 {
		return text("No valid keys provided.")
	}
	n := h.keys.Codes.AddMany(keys)
	h.log.Info("keys imported", "by", by, "count", n)
	return Response{Text: fmt.Sprintf("Successfully added %d keys!", n), RefreshPanel: true}
}
