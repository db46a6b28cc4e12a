package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/entireio/relay/cmd/relay/cli/jsonutil"
	"github.com/entireio/relay/cmd/relay/cli/validation"
)

// Mode selects where delivered text goes.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeSilent Mode = "silent"

	verboseSuffix = "-verbose"
)

// DefaultMode applies when no mode has been chosen.
const DefaultMode = ModeLocal

// ErrUnknownMode is returned for modes that name no registered destination.
var ErrUnknownMode = errors.New("unknown channel mode")

// Destination returns the destination id and whether reasoning traces are
// included. Local and silent return themselves.
func (m Mode) Destination() (string, bool) {
	if dest, ok := strings.CutSuffix(string(m), verboseSuffix); ok {
		return dest, true
	}
	return string(m), false
}

// ParseMode validates s as a mode string.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch Mode(s) {
	case ModeLocal, ModeSilent:
		return Mode(s), nil
	}
	dest, _ := Mode(s).Destination()
	if err := validation.ValidateDestinationID(dest); err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrUnknownMode, s, err)
	}
	return Mode(s), nil
}

// ModeStore supplies the current mode. It is read on every delivery.
type ModeStore interface {
	Mode(ctx context.Context) (Mode, error)
}

// FixedMode is a ModeStore that always returns itself.
type FixedMode Mode

func (f FixedMode) Mode(context.Context) (Mode, error) { return Mode(f), nil }

// fileState is the on-disk form of the channel state file.
type fileState struct {
	Mode      Mode      `json:"mode"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// FileModeStore reads the mode from a JSON file owned by the user (or by
// `relay mode`). A missing file means DefaultMode.
type FileModeStore struct {
	Path string
}

func (f FileModeStore) Mode(context.Context) (Mode, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultMode, nil
		}
		return DefaultMode, fmt.Errorf("reading channel state: %w", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return DefaultMode, fmt.Errorf("parsing channel state: %w", err)
	}
	if st.Mode == "" {
		return DefaultMode, nil
	}
	return ParseMode(string(st.Mode))
}

// Set writes mode atomically.
func (f FileModeStore) Set(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if err := jsonutil.WriteFile(f.Path, fileState{Mode: mode, UpdatedAt: time.Now().UTC()}, 0o600); err != nil {
		return fmt.Errorf("writing channel state: %w", err)
	}
	return nil
}
