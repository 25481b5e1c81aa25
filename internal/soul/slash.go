package soul

import (
	"context"
	"strings"

	"github.com/gencode-ai/agentcore/internal/agent"
	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/message"
	"go.uber.org/zap"
)

// SlashCommand is one `/name` (optionally followed by an argument) command
// the Soul dispatches instead of running an ordinary turn.
type SlashCommand struct {
	Name        string
	Description string
	Run         func(ctx context.Context, s *Soul, arg string) (TurnOutcome, error)
}

// buildSlashCommands assembles the built-in commands plus one `/skill:<name>`
// or `/flow:<name>` command per discovered skill. A name collision keeps the
// first registration and logs a warning rather than failing outright — the
// same first-wins policy kimisoul.py uses when a skill's name shadows a
// built-in.
func (s *Soul) buildSlashCommands() map[string]*SlashCommand {
	commands := make(map[string]*SlashCommand)
	register := func(cmd *SlashCommand) {
		if _, exists := commands[cmd.Name]; exists {
			log.Logger().Warn("slash command name collision, keeping first registration", zap.String("name", cmd.Name))
			return
		}
		commands[cmd.Name] = cmd
	}

	register(&SlashCommand{Name: "clear", Description: "Clear the conversation and start fresh.", Run: runClear})
	register(&SlashCommand{Name: "compact", Description: "Compact the conversation to free up context.", Run: runCompact})
	register(&SlashCommand{Name: "yolo", Description: "Toggle auto-approval of tool calls.", Run: runYolo})

	for _, skill := range s.runtime.Env.SkillCatalog {
		skill := skill
		if skill.Type == agent.SkillFlow && skill.Flow != nil {
			register(&SlashCommand{
				Name:        "flow:" + skill.Name,
				Description: skill.Description,
				Run: func(ctx context.Context, s *Soul, arg string) (TurnOutcome, error) {
					runner := NewFlowRunner(s, skill.Name, skill.Flow, DefaultMaxFlowMoves)
					return runner.Run(ctx, arg)
				},
			})
			continue
		}
		register(&SlashCommand{
			Name:        "skill:" + skill.Name,
			Description: skill.Description,
			Run: func(ctx context.Context, s *Soul, arg string) (TurnOutcome, error) {
				prompt := skill.Body
				if arg != "" {
					prompt += "\n\n" + arg
				}
				return s.turn(ctx, message.NewUserMessage(prompt))
			},
		})
	}
	return commands
}

// findSlashCommand parses "/name rest..." out of input. ok is false when
// input isn't a slash command, or names a command nothing registered.
func (s *Soul) findSlashCommand(input string) (cmd *SlashCommand, arg string, ok bool) {
	if !strings.HasPrefix(input, "/") {
		return nil, "", false
	}
	name, rest, _ := strings.Cut(input[1:], " ")
	cmd, ok = s.slashCommands[name]
	if !ok {
		return nil, "", false
	}
	return cmd, strings.TrimSpace(rest), true
}

func runClear(_ context.Context, s *Soul, _ string) (TurnOutcome, error) {
	if err := s.context.Clear(); err != nil {
		return TurnOutcome{}, err
	}
	return TurnOutcome{Stop: TurnFinished}, nil
}

func runCompact(ctx context.Context, s *Soul, _ string) (TurnOutcome, error) {
	if err := s.compactContext(ctx); err != nil {
		return TurnOutcome{}, err
	}
	return TurnOutcome{Stop: TurnFinished}, nil
}

func runYolo(_ context.Context, s *Soul, _ string) (TurnOutcome, error) {
	enabled := !s.yolo.Load()
	s.yolo.Store(enabled)
	s.runtime.Approval.SetYOLO(enabled)
	return TurnOutcome{Stop: TurnFinished}, nil
}
