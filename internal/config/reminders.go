package config

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReminderPolicy drives the reminder sweep, the recurring sweep and campaign fan-out.
type ReminderPolicy struct {
	// EscalationDays are the exact days past due on which a reminder is sent.
	EscalationDays    []int `mapstructure:"escalationDays"`
	RecurringTermDays int   `mapstructure:"recurringTermDays"`
	CampaignBatchSize int   `mapstructure:"campaignBatchSize"`
}

func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{
		EscalationDays:    []int{3, 7, 14, 30},
		RecurringTermDays: 30,
		CampaignBatchSize: 50,
	}
}

type ReminderPolicyHolder struct {
	current atomic.Value // holds ReminderPolicy
}

// NewStaticReminderPolicy returns a holder that never reloads.
func NewStaticReminderPolicy(policy ReminderPolicy) *ReminderPolicyHolder {
	holder := &ReminderPolicyHolder{}
	holder.current.Store(normalizeReminderPolicy(policy))
	return holder
}

func NewReminderPolicyHolder(log *zap.Logger) (*ReminderPolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.reminders")

	v := viper.New()
	v.SetConfigName("reminders")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/studioledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STUDIOLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReminderPolicy()
	v.SetDefault("reminders.escalationDays", defaults.EscalationDays)
	v.SetDefault("reminders.recurringTermDays", defaults.RecurringTermDays)
	v.SetDefault("reminders.campaignBatchSize", defaults.CampaignBatchSize)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	var policy ReminderPolicy
	if err := v.UnmarshalKey("reminders", &policy); err != nil {
		return nil, err
	}
	if err := validateReminderPolicy(policy); err != nil {
		return nil, err
	}

	holder := &ReminderPolicyHolder{}
	holder.current.Store(normalizeReminderPolicy(policy))

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ReminderPolicy
			if err := v.UnmarshalKey("reminders", &updated); err != nil {
				log.Warn("reminder policy reload failed", zap.Error(err))
				return
			}
			if err := validateReminderPolicy(updated); err != nil {
				log.Warn("invalid reminder policy ignored", zap.Error(err))
				return
			}
			holder.current.Store(normalizeReminderPolicy(updated))
			log.Info("reminder policy reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *ReminderPolicyHolder) Get() ReminderPolicy {
	if h == nil {
		return DefaultReminderPolicy()
	}
	policy, ok := h.current.Load().(ReminderPolicy)
	if !ok {
		return DefaultReminderPolicy()
	}
	return policy
}

func validateReminderPolicy(policy ReminderPolicy) error {
	if len(policy.EscalationDays) == 0 {
		return errors.New("reminders.escalationDays cannot be empty")
	}
	for _, day := range policy.EscalationDays {
		if day <= 0 {
			return errors.New("reminders.escalationDays must be positive")
		}
	}
	if policy.RecurringTermDays <= 0 {
		return errors.New("reminders.recurringTermDays must be positive")
	}
	if policy.CampaignBatchSize <= 0 {
		return errors.New("reminders.campaignBatchSize must be positive")
	}
	return nil
}

func normalizeReminderPolicy(policy ReminderPolicy) ReminderPolicy {
	defaults := DefaultReminderPolicy()
	if len(policy.EscalationDays) == 0 {
		policy.EscalationDays = defaults.EscalationDays
	}
	days := append([]int(nil), policy.EscalationDays...)
	sort.Ints(days)
	policy.EscalationDays = days
	if policy.RecurringTermDays <= 0 {
		policy.RecurringTermDays = defaults.RecurringTermDays
	}
	if policy.CampaignBatchSize <= 0 {
		policy.CampaignBatchSize = defaults.CampaignBatchSize
	}
	return policy
}
