package editor

// CommandKind enumerates the closed set of normalized editor commands the
// platform reducer emits.
type CommandKind int

const (
	CmdMoveLeft CommandKind = iota
	CmdMoveRight
	CmdMoveUp
	CmdMoveDown
	CmdPageUp
	CmdPageDown
	CmdMoveHome // visual-row start
	CmdMoveEnd  // visual-row end
	CmdMoveLineHome
	CmdMoveLineEnd
	CmdMoveDocHome
	CmdMoveDocEnd
	CmdBackspace
	CmdDeleteForward
	CmdDeleteToLineStart
	CmdDeleteToLineEnd
	CmdInsertText
	CmdInsertNewline
	CmdInsertTab
	CmdSelectAll
	CmdCopy
	CmdCut
	CmdPaste
	CmdUndo
	CmdRedo
	CmdImeEnabled
	CmdImePreedit
	CmdImeCommit
	CmdImeDisabled
)

// Command is one normalized input command.
type Command struct {
	Kind   CommandKind
	Select bool
	Word   bool
	Text   string
}

// Route classifies how the UI shell dispatches a command relative to focus
// handling.
type Route int

const (
	// RouteCopyOnly may fire without editor focus.
	RouteCopyOnly Route = iota
	// RouteFocusRequired executes only while the editor has focus.
	RouteFocusRequired
	// RoutePostFocus executes after the UI finalized focus for the frame.
	RoutePostFocus
)

// Route returns the dispatch class of the command.
func (c Command) Route() Route {
	switch c.Kind {
	case CmdCopy:
		return RouteCopyOnly
	case CmdCut, CmdPaste:
		return RoutePostFocus
	default:
		return RouteFocusRequired
	}
}

// IsInsertion reports whether the command inserts text; insertions are
// ignored while an IME preedit is active.
func (c Command) IsInsertion() bool {
	switch c.Kind {
	case CmdInsertText, CmdInsertNewline, CmdInsertTab, CmdPaste:
		return true
	}
	return false
}

// Platform selects the key-binding flavor. It is the only OS branch point
// in the editor.
type Platform int

const (
	PlatformOther Platform = iota
	PlatformMac
)

// Key is a neutral physical key identifier.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyBackspace
	KeyDelete
	KeyEnter
	KeyTab
	KeyA
	KeyB
	KeyC
	KeyE
	KeyF
	KeyK
	KeyN
	KeyP
	KeyV
	KeyX
	KeyY
	KeyZ
)

// Modifiers is the raw modifier state of an event. On macOS Cmd and Ctrl
// are distinct; elsewhere the UI toolkit reports the primary command
// modifier on the Ctrl bit.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Alt   bool
	Cmd   bool
}

// EventKind discriminates raw input events.
type EventKind int

const (
	EventKey EventKind = iota
	EventText
	EventCopy
	EventCut
	EventPaste
	EventImeEnabled
	EventImePreedit
	EventImeCommit
	EventImeDisabled
)

// Event is one raw input event from the UI shell.
type Event struct {
	Kind EventKind
	Key  Key
	Mods Modifiers
	Text string
}

// isWordModifier: word movement uses Alt on macOS and Ctrl elsewhere.
func isWordModifier(platform Platform, mods Modifiers) bool {
	if platform == PlatformMac {
		return mods.Alt
	}
	return mods.Ctrl
}

// isCommandModifier: the primary command key is Cmd on macOS and Ctrl
// elsewhere. On non-mac the command and word modifiers share the Ctrl bit,
// so the reducer must never early-exit on "command is down" — that would
// swallow Ctrl+arrow word movement.
func isCommandModifier(platform Platform, mods Modifiers) bool {
	if platform == PlatformMac {
		return mods.Cmd
	}
	return mods.Ctrl
}

// macCtrlEditing maps the macOS Ctrl chords (Emacs-style) onto commands.
func macCtrlEditing(key Key, mods Modifiers) (Command, bool) {
	if !mods.Ctrl || mods.Cmd || mods.Alt {
		return Command{}, false
	}
	switch key {
	case KeyA:
		return Command{Kind: CmdMoveLineHome, Select: mods.Shift}, true
	case KeyE:
		return Command{Kind: CmdMoveLineEnd, Select: mods.Shift}, true
	case KeyB:
		return Command{Kind: CmdMoveLeft, Select: mods.Shift}, true
	case KeyF:
		return Command{Kind: CmdMoveRight, Select: mods.Shift}, true
	case KeyP:
		return Command{Kind: CmdMoveUp, Select: mods.Shift}, true
	case KeyN:
		return Command{Kind: CmdMoveDown, Select: mods.Shift}, true
	case KeyK:
		return Command{Kind: CmdDeleteToLineEnd}, true
	}
	return Command{}, false
}

// mapKeyEvent translates one key chord for the given platform. ok is false
// for chords the editor does not handle.
func mapKeyEvent(platform Platform, key Key, mods Modifiers) (Command, bool) {
	if platform == PlatformMac {
		if cmd, ok := macCtrlEditing(key, mods); ok {
			return cmd, ok
		}
	}

	command := isCommandModifier(platform, mods)
	word := isWordModifier(platform, mods)

	switch key {
	case KeyLeft:
		if platform == PlatformMac && mods.Cmd {
			return Command{Kind: CmdMoveLineHome, Select: mods.Shift}, true
		}
		return Command{Kind: CmdMoveLeft, Select: mods.Shift, Word: word}, true
	case KeyRight:
		if platform == PlatformMac && mods.Cmd {
			return Command{Kind: CmdMoveLineEnd, Select: mods.Shift}, true
		}
		return Command{Kind: CmdMoveRight, Select: mods.Shift, Word: word}, true
	case KeyUp:
		if platform == PlatformMac && mods.Cmd {
			return Command{Kind: CmdMoveDocHome, Select: mods.Shift}, true
		}
		return Command{Kind: CmdMoveUp, Select: mods.Shift}, true
	case KeyDown:
		if platform == PlatformMac && mods.Cmd {
			return Command{Kind: CmdMoveDocEnd, Select: mods.Shift}, true
		}
		return Command{Kind: CmdMoveDown, Select: mods.Shift}, true
	case KeyHome:
		if command && platform != PlatformMac {
			return Command{Kind: CmdMoveDocHome, Select: mods.Shift}, true
		}
		return Command{Kind: CmdMoveHome, Select: mods.Shift}, true
	case KeyEnd:
		if command && platform != PlatformMac {
			return Command{Kind: CmdMoveDocEnd, Select: mods.Shift}, true
		}
		return Command{Kind: CmdMoveEnd, Select: mods.Shift}, true
	case KeyPageUp:
		return Command{Kind: CmdPageUp, Select: mods.Shift}, true
	case KeyPageDown:
		return Command{Kind: CmdPageDown, Select: mods.Shift}, true
	case KeyBackspace:
		if platform == PlatformMac && mods.Cmd {
			return Command{Kind: CmdDeleteToLineStart}, true
		}
		return Command{Kind: CmdBackspace, Word: word}, true
	case KeyDelete:
		if platform == PlatformMac && mods.Cmd {
			return Command{Kind: CmdDeleteToLineEnd}, true
		}
		return Command{Kind: CmdDeleteForward, Word: word}, true
	case KeyEnter:
		return Command{Kind: CmdInsertNewline}, true
	case KeyTab:
		if mods.Ctrl || mods.Cmd || mods.Alt {
			return Command{}, false
		}
		return Command{Kind: CmdInsertTab}, true
	case KeyA:
		if command {
			return Command{Kind: CmdSelectAll}, true
		}
	case KeyC:
		if command {
			return Command{Kind: CmdCopy}, true
		}
	case KeyX:
		if command {
			return Command{Kind: CmdCut}, true
		}
	case KeyV:
		if command {
			// Paste text arrives via the high-level paste event; the chord
			// alone carries no payload.
			return Command{Kind: CmdPaste}, true
		}
	case KeyZ:
		if command {
			if mods.Shift {
				return Command{Kind: CmdRedo}, true
			}
			return Command{Kind: CmdUndo}, true
		}
	case KeyY:
		if command && platform != PlatformMac {
			return Command{Kind: CmdRedo}, true
		}
	}
	return Command{}, false
}

// CommandsFromEvents reduces one frame's raw events to normalized commands.
//
// Rules enforced here:
//   - without focus, only RouteCopyOnly commands are emitted
//   - at most one Copy and one Cut per frame (some platforms deliver both
//     a key chord and a high-level event for the same gesture)
func CommandsFromEvents(events []Event, platform Platform, focused bool) []Command {
	var commands []Command
	copySeen := false
	cutSeen := false

	emit := func(cmd Command) {
		switch cmd.Kind {
		case CmdCopy:
			if copySeen {
				return
			}
			copySeen = true
		case CmdCut:
			if cutSeen {
				return
			}
			cutSeen = true
		}
		if !focused && cmd.Route() != RouteCopyOnly {
			return
		}
		commands = append(commands, cmd)
	}

	for _, ev := range events {
		switch ev.Kind {
		case EventKey:
			if cmd, ok := mapKeyEvent(platform, ev.Key, ev.Mods); ok {
				emit(cmd)
			}
		case EventText:
			if ev.Text != "" {
				emit(Command{Kind: CmdInsertText, Text: ev.Text})
			}
		case EventCopy:
			emit(Command{Kind: CmdCopy})
		case EventCut:
			emit(Command{Kind: CmdCut})
		case EventPaste:
			emit(Command{Kind: CmdPaste, Text: ev.Text})
		case EventImeEnabled:
			emit(Command{Kind: CmdImeEnabled})
		case EventImePreedit:
			emit(Command{Kind: CmdImePreedit, Text: ev.Text})
		case EventImeCommit:
			emit(Command{Kind: CmdImeCommit, Text: ev.Text})
		case EventImeDisabled:
			emit(Command{Kind: CmdImeDisabled})
		}
	}
	return commands
}
