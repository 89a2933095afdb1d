package intake

import (
	"strings"
	"time"
	"unicode/utf8"

	"swingy/server/internal/net/proto"
	"swingy/server/internal/sim"
)

const (
	// RejectInvalidCommand marks a frame that decoded but carries an unusable value.
	RejectInvalidCommand = "invalid_command"
	// RejectInvalidName marks a Name command that is empty after trimming.
	RejectInvalidName = "invalid_name"
	// RejectUnknownSession marks a command from an id the registry does not hold.
	RejectUnknownSession = "unknown_session"

	// MaxNameRunes caps player names.
	MaxNameRunes = 32
)

// Stager accepts commands for the next tick.
type Stager interface {
	Enqueue(sim.Command) (bool, string)
}

// CommandContext carries the hooks intake needs to attribute and stage a
// command without depending on the hub.
type CommandContext struct {
	Engine     Stager
	HasSession func(sim.SessionID) bool
	Tick       func() uint64
	Now        func() time.Time
}

// StageClientCommand validates msg, attributes it to id and stages it on the
// engine. Rejections report a reason instead of an error.
func StageClientCommand(ctx CommandContext, id sim.SessionID, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, RejectInvalidCommand
	}

	if command.Type == sim.CommandName {
		name, ok := normalizeName(command.Name)
		if !ok {
			return zero, false, RejectInvalidName
		}
		command.Name = name
	}

	if ctx.HasSession != nil && !ctx.HasSession(id) {
		return zero, false, RejectUnknownSession
	}

	command.ActorID = id
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}

func normalizeName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" || !utf8.ValidString(name) {
		return "", false
	}
	if utf8.RuneCountInString(name) > MaxNameRunes {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:MaxNameRunes]))
	}
	return name, true
}
