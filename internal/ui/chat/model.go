// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tinychat/internal/detect"
	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/session"
	"github.com/jeranaias/tinychat/internal/ui/styles"
)

// =============================================================================
// CONTROLLER PORT
// =============================================================================

// Controller is the subset of the session controller the view drives.
type Controller interface {
	Submit(ctx context.Context, text, maxTokensRaw string) session.Outcome
	Cancel() bool
	Clear()
	Touch()
	Ready()
}

var _ Controller = (*session.Controller)(nil)

// focusTarget is the control receiving key input.
type focusTarget int

const (
	focusMessage focusTarget = iota
	focusTokens
)

// =============================================================================
// MODEL
// =============================================================================

// Options configures the chat view.
type Options struct {
	// Controller handles submissions. Nil renders a diagnostic.
	Controller Controller
	// Theme defaults to a dark theme.
	Theme *styles.Theme
	// ModelName is shown in the header.
	ModelName string
	// DefaultMaxTokens pre-fills the max tokens field.
	DefaultMaxTokens int
	// Report is the start-up compatibility probe. Nil means not probed.
	Report *detect.Report
	// Markdown renders finalized assistant messages with glamour.
	Markdown bool
	// Context is passed to Submit. Defaults to context.Background().
	Context context.Context
}

// Model is the bubbletea model for the chat view.
type Model struct {
	ctx   context.Context
	ctrl  Controller
	theme *styles.Theme
	keys  KeyMap

	conversation *model.Conversation
	markdown     *markdownCache
	modelName    string
	gpuLabel     string

	viewport viewport.Model
	input    textarea.Model
	tokens   textinput.Model
	spinner  spinner.Model
	progress progress.Model
	focus    focusTarget

	status session.Status
	busy   bool
	// submitting is set from Enter until the Submit command returns, ahead
	// of the BusyMsg the controller posts.
	submitting bool

	// unsupported disables submission after a failed probe.
	unsupported bool
	// missing lists required elements that could not be placed.
	missing []string

	width  int
	height int
	sized  bool
}

// New creates the chat view.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("dark")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.DefaultMaxTokens <= 0 {
		opts.DefaultMaxTokens = session.DefaultGenerationOptions().DefaultMaxNewTokens
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask something..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 8192
	ta.SetHeight(inputRows)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 6
	ti.Width = tokensFieldWidth
	ti.SetValue(strconv.Itoa(opts.DefaultMaxTokens))

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = opts.Theme.Spinner

	pb := progress.New(
		progress.WithGradient(styles.ProgressGradient[0], styles.ProgressGradient[1]),
		progress.WithoutPercentage(),
		progress.WithWidth(progressWidth),
	)

	m := Model{
		ctx:          opts.Context,
		ctrl:         opts.Controller,
		theme:        opts.Theme,
		keys:         keys,
		conversation: model.NewConversation(),
		markdown:     newMarkdownCache(opts.Theme.GlamourStyle(), opts.Markdown),
		modelName:    opts.ModelName,
		viewport:     viewport.New(80, 20),
		input:        ta,
		tokens:       ti,
		spinner:      sp,
		progress:     pb,
		status:       session.Status{Kind: session.StatusInfo, Text: "System initialized", Progress: -1},
	}

	if r := opts.Report; r != nil {
		if r.GPU != nil {
			m.gpuLabel = r.GPU.String()
		}
		for _, w := range r.Warnings {
			m.conversation.Append(model.NewSystemMessage(w))
		}
		if !r.Supported {
			m.unsupported = true
			m.status = session.Status{
				Kind:     session.StatusError,
				Text:     fmt.Sprintf("Unsupported environment: %d problem(s) found, submission disabled", len(r.Warnings)),
				Progress: -1,
			}
		}
	}

	m.missing = checkElements(m.ctrl, 0, 0, false)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.ctrl != nil && !m.unsupported {
		// Ready only posts to the binder, so it is safe from the event loop.
		m.ctrl.Ready()
	}
	return textarea.Blink
}

// Conversation returns the chat log shown by the view.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// Status returns the current status line.
func (m Model) Status() session.Status {
	return m.status
}

// Busy reports whether a generation is running.
func (m Model) Busy() bool {
	return m.busy
}

// Disabled reports whether required elements are missing.
func (m Model) Disabled() bool {
	return len(m.missing) > 0
}

// Unsupported reports whether submission is disabled by the probe.
func (m Model) Unsupported() bool {
	return m.unsupported
}
