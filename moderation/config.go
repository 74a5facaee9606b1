package moderation

import (
	"errors"
	"fmt"
	"time"

	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/voiceroom"
)

// Default zone for displayed times.
const DefaultTimezone = "Europe/Istanbul"

type Config struct {
	SanctionedRoleID   string
	UnregisteredRoleID string
	ExemptRoleID       string
	// moderation log channel (optional)
	LogChannelID     string
	ModeratorRoleIDs []string
	// may make structural changes without tripping the guards
	BypassRoleIDs []string
	MaleRoleID    string
	FemaleRoleID  string

	CreationChannelID   string
	CreationChannelName string
	TransferStrictness  voiceroom.TransferStrictness

	CommandPrefix string
	Location      *time.Location
	FlowWindow    time.Duration
	FlowCapacity  int
}

const defaultFlowCapacity = 4096

func (c *Config) Validate() error {
	var errs []error
	if c.SanctionedRoleID == "" {
		errs = append(errs, errors.New("sanctioned role ID is required"))
	}
	if c.UnregisteredRoleID == "" {
		errs = append(errs, errors.New("unregistered role ID is required"))
	}
	if c.SanctionedRoleID != "" && c.SanctionedRoleID == c.UnregisteredRoleID {
		errs = append(errs, fmt.Errorf("sanctioned and unregistered roles must differ (both %s)", c.SanctionedRoleID))
	}
	if c.FlowWindow < 0 {
		errs = append(errs, fmt.Errorf("negative flow window: %s", c.FlowWindow))
	}
	return errors.Join(errs...)
}

func (c *Config) setDefaults() {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.FlowWindow == 0 {
		c.FlowWindow = flow.DefaultWindow
	}
	if c.FlowCapacity <= 0 {
		c.FlowCapacity = defaultFlowCapacity
	}
}
