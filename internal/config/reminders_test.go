package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticReminderPolicyNormalizes(t *testing.T) {
	holder := NewStaticReminderPolicy(ReminderPolicy{
		EscalationDays: []int{14, 3, 30, 7},
	})

	policy := holder.Get()
	assert.Equal(t, []int{3, 7, 14, 30}, policy.EscalationDays)
	assert.Equal(t, 30, policy.RecurringTermDays)
	assert.Equal(t, 50, policy.CampaignBatchSize)
	assert.Equal(t, DefaultReminderPolicy(), NewStaticReminderPolicy(ReminderPolicy{}).Get())
}

func TestValidateReminderPolicy(t *testing.T) {
	require.NoError(t, validateReminderPolicy(DefaultReminderPolicy()))

	bad := DefaultReminderPolicy()
	bad.EscalationDays = []int{3, 0}
	require.Error(t, validateReminderPolicy(bad))

	bad = DefaultReminderPolicy()
	bad.CampaignBatchSize = 0
	require.Error(t, validateReminderPolicy(bad))
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *ReminderPolicyHolder
	assert.Equal(t, DefaultReminderPolicy(), holder.Get())
}
