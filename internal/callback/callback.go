// Package callback encodes booking decisions into Telegram callback data.
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Actions carried in callback data.
const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
	ActionCancel  = "cancel"
)

// Errmalformed is returned for data that does not match action:ids:user.
var ErrMalformed = errors.New("malformed callback data")

// Decision is a parsed admin or owner decision over one booking run.
type Decision struct {
	Action  string
	SlotIDs []int64
	UserID  int64
}

// Format packs a decision as "action:id1,id2:userID".
func Format(action string, slotIDs []int64, userID int64) string {
	parts := make([]string, len(slotIDs))
	for i, id := range slotIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s:%s:%d", action, strings.Join(parts, ","), userID)
}

// Parse unpacks callback data produced by Format.
func Parse(data string) (*Decision, error) {
	fields := strings.Split(data, ":")
	if len(fields) != 3 {
		return nil, ErrMalformed
	}
	action := fields[0]
	switch action {
	case ActionConfirm, ActionReject, ActionCancel:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformed, action)
	}

	idParts := strings.Split(fields[1], ",")
	ids := make([]int64, 0, len(idParts))
	for _, p := range idParts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: bad slot id %q", ErrMalformed, p)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrMalformed
	}

	userID, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id %q", ErrMalformed, fields[2])
	}
	return &Decision{Action: action, SlotIDs: ids, UserID: userID}, nil
}
