package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nukhba-ai/tutor/backend/internal/config"
	"github.com/nukhba-ai/tutor/backend/internal/logging"
	modelchat "github.com/nukhba-ai/tutor/backend/internal/model/chat"
	modelvoice "github.com/nukhba-ai/tutor/backend/internal/model/voice"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
	"github.com/nukhba-ai/tutor/backend/internal/service/chat"
	"github.com/nukhba-ai/tutor/backend/internal/service/speech"
	"github.com/nukhba-ai/tutor/backend/internal/service/tutor"
	"github.com/nukhba-ai/tutor/backend/internal/service/voice"
)

// sessionFlags 是所有子命令共享的会话参数
type sessionFlags struct {
	language   string
	dailyLimit int
	premium    bool
	quiet      bool
	logLevel   string
}

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	flags  sessionFlags

	// newProvider 默认从环境变量构建模型客户端，测试中替换
	newProvider func(ctx context.Context) (ai.Provider, *config.Config, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, newProvider: providerFromEnv}
}

func providerFromEnv(ctx context.Context) (ai.Provider, *config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.AI.Enabled() {
		return nil, nil, fmt.Errorf("credentials for provider %q are not configured", cfg.AI.Provider)
	}
	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		return nil, nil, err
	}
	return provider, cfg, nil
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tutorcli",
		Short:        "Talk to the Nukhba tutor from a terminal",
		SilenceUsage: true,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.flags.language, "lang", "l", "english", "conversation language: english, arabic or hindi")
	flags.IntVar(&a.flags.dailyLimit, "daily-limit", chat.DefaultDailyLimit, "questions allowed per session")
	flags.BoolVar(&a.flags.premium, "premium", false, "lift the daily question limit")
	flags.BoolVarP(&a.flags.quiet, "quiet", "q", false, "do not speak answers")
	flags.StringVar(&a.flags.logLevel, "log-level", "warn", "log level")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one typed question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd.Context(), strings.Join(args, " "))
		},
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold a voice conversation; every input line is one spoken question",
		Long: `Each line read from stdin is treated as the final transcript of one
listening episode. An empty line behaves like silence. The session ends at EOF.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd.Context())
		},
	}

	root.AddCommand(askCmd, chatCmd)
	return root
}

// session 组装一次运行所需的编排器
type session struct {
	orch    *voice.Orchestrator
	capture *speech.LineCaptureEngine
}

func (a *app) openSession(ctx context.Context) (*session, error) {
	lang, err := modelchat.ParseLanguage(a.flags.language)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(a.flags.logLevel, "console")
	if err != nil {
		return nil, err
	}

	provider, cfg, err := a.newProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("tutor provider: %w", err)
	}
	opts := tutor.Options{}
	attempts := voice.DefaultMaxAttempts
	if cfg != nil {
		opts = tutor.Options{
			HistoryLimit: cfg.Tutor.HistoryLimit,
			Temperature:  cfg.Tutor.Temperature,
			MaxTokens:    cfg.Tutor.MaxTokens,
			Timeout:      cfg.Tutor.RequestTimeout,
		}
		attempts = cfg.Tutor.MaxAttempts
	}

	s, err := chat.NewSession(chat.Options{
		Language:   lang,
		DailyLimit: a.flags.dailyLimit,
		Premium:    a.flags.premium,
	})
	if err != nil {
		return nil, err
	}
	s.SetAutoPlay(!a.flags.quiet)

	capture := speech.NewLineCaptureEngine(a.in)
	orch := voice.New(voice.Options{
		Session:     s,
		Capture:     speech.NewCaptureAdapter(capture, logger.Named("speech")),
		Output:      speech.NewOutputAdapter(speech.NewWriterOutputEngine(a.out), logger.Named("speech")),
		Tutor:       tutor.NewClient(provider, opts, logger.Named("tutor")),
		MaxAttempts: attempts,
		Logger:      logger.Named("orchestrator"),
	})
	return &session{orch: orch, capture: capture}, nil
}

func (a *app) runAsk(ctx context.Context, question string) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.orch.Close()

	idle := a.watch(s.orch)
	before := s.orch.Snapshot().Turn
	msg, err := s.orch.SendText(ctx, question)
	if err != nil {
		return err
	}
	if a.flags.quiet {
		fmt.Fprintln(a.out, msg.Content)
	} else {
		// 朗读结束后才返回
		waitIdle(ctx, idle, before+1)
	}
	a.printFollowUps(msg)
	return nil
}

func (a *app) runChat(ctx context.Context) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.orch.Close()

	idle := a.watch(s.orch)
	unsubscribe := s.orch.Subscribe(func(evt voice.Event) {
		if evt.Type != voice.EventMessage || evt.Message.Sender != modelchat.SenderAssistant {
			return
		}
		if a.flags.quiet {
			fmt.Fprintln(a.out, evt.Message.Content)
		}
		a.printFollowUps(*evt.Message)
	})
	defer unsubscribe()

	fmt.Fprintln(a.errOut, s.orch.Session().Messages()[0].Content)
	for s.capture.Available() {
		if err := s.orch.StartListening(ctx); err != nil {
			if errors.Is(err, modelvoice.ErrRateLimitExceeded) {
				return nil
			}
			return err
		}
		if !waitIdle(ctx, idle, s.orch.Snapshot().Turn) {
			return ctx.Err()
		}
	}
	return nil
}

// watch 转发状态事件并把提示打印到错误输出
func (a *app) watch(orch *voice.Orchestrator) <-chan voice.Event {
	idle := make(chan voice.Event, 64)
	orch.Subscribe(func(evt voice.Event) {
		switch evt.Type {
		case voice.EventNotification:
			fmt.Fprintf(a.errOut, "! %s\n", evt.Notification.Message)
		case voice.EventState:
			if evt.State == modelvoice.Idle {
				select {
				case idle <- evt:
				default:
				}
			}
		}
	})
	return idle
}

func waitIdle(ctx context.Context, idle <-chan voice.Event, turn uint64) bool {
	for {
		select {
		case evt := <-idle:
			if evt.Turn >= turn {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}

func (a *app) printFollowUps(msg modelchat.Message) {
	for _, q := range msg.FollowUpQuestions {
		fmt.Fprintf(a.out, "  ? %s\n", q)
	}
}
