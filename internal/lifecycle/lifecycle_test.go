package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/prospector/internal/models"
)

func TestNext_Table(t *testing.T) {
	tests := []struct {
		name    string
		from    models.Status
		signal  Signal
		want    models.Status
		changed bool
	}{
		{"invite from new", models.StatusNew, SignalInviteSent, models.StatusInvited, true},
		{"pending from new", models.StatusNew, SignalPendingLabel, models.StatusInvited, true},
		{"already connected", models.StatusNew, SignalMessageAffordance, models.StatusConnected, true},
		{"nothing seen", models.StatusNew, SignalNone, models.StatusNew, false},
		{"accepted", models.StatusInvited, SignalMessageAffordance, models.StatusConnected, true},
		{"still pending", models.StatusInvited, SignalNone, models.StatusInvited, false},
		{"re-invite ignored", models.StatusInvited, SignalInviteSent, models.StatusInvited, false},
		{"delivered", models.StatusConnected, SignalMessageDelivered, models.StatusMessaged, true},
		{"delivery needs connection", models.StatusInvited, SignalMessageDelivered, models.StatusInvited, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Next(tt.from, tt.signal)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestNext_MessagedIsTerminal(t *testing.T) {
	signals := []Signal{SignalNone, SignalInviteSent, SignalPendingLabel, SignalMessageAffordance, SignalMessageDelivered}
	for _, s := range signals {
		got, changed := Next(models.StatusMessaged, s)
		assert.Equal(t, models.StatusMessaged, got, "signal %s", s)
		assert.False(t, changed)
	}
}

func TestForward(t *testing.T) {
	assert.True(t, Forward(models.StatusNew, models.StatusInvited))
	assert.True(t, Forward(models.StatusInvited, models.StatusInvited))
	assert.False(t, Forward(models.StatusMessaged, models.StatusNew))
	assert.False(t, Forward(models.StatusConnected, models.StatusInvited))
}

func TestObserve(t *testing.T) {
	assert.Equal(t, SignalInviteSent, Observe(InviteOutcome{Attempted: true}, PageSignals{MessageButton: true}))
	assert.Equal(t, SignalMessageAffordance, Observe(InviteOutcome{}, PageSignals{MessageButton: true, PendingLabel: true}))
	assert.Equal(t, SignalPendingLabel, Observe(InviteOutcome{}, PageSignals{PendingLabel: true}))
	assert.Equal(t, SignalNone, Observe(InviteOutcome{}, PageSignals{}))
}
