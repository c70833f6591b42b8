// Package cli drives an interactive goal session in the terminal.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	goi "github.com/Jamplesmise/prompt-tool-sub006"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/presentation/tui"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/intent"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

// RunOptions configures an interactive run.
type RunOptions struct {
	SessionID string
	Mode      string
	Goal      string

	// AutoApprove approves every checkpoint without prompting. Used
	// for non-interactive runs.
	AutoApprove bool

	// Plain suppresses the banner and markdown rendering.
	Plain bool
}

// RunSession runs one interactive session until the goal completes or
// the user quits.
func RunSession(app *goi.App, opts RunOptions) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if !interactive && opts.Goal == "" {
		return fmt.Errorf("no goal provided and stdin is not a terminal; use --goal")
	}

	if interactive && !opts.Plain {
		tui.PrintBanner(goi.Version)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, app, opts)
	if err != nil {
		return err
	}

	r := &repl{
		sess:    sess,
		reader:  bufio.NewScanner(os.Stdin),
		render:  renderFunc(opts.Plain),
		auto:    opts.AutoApprove || !interactive,
		pageCtx: intent.Context{Page: "/tasks"},
	}

	if opts.Goal != "" {
		if err := r.runGoal(ctx, opts.Goal); err != nil {
			return err
		}
		if !interactive {
			return nil
		}
	}

	fmt.Println("输入目标或命令 (/todo /mode /quit):")
	for {
		fmt.Print("> ")
		line, ok := r.readLine(ctx)
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}
		if err := r.utter(ctx, line); err != nil {
			fmt.Printf("错误: %v\n", err)
		}
	}
}

func openSession(ctx context.Context, app *goi.App, opts RunOptions) (*session.Session, error) {
	if opts.SessionID != "" && app.Manager.Has(opts.SessionID) {
		return app.Manager.Get(opts.SessionID)
	}
	if opts.SessionID != "" {
		if sess, err := app.Manager.Resume(ctx, opts.SessionID); err == nil {
			fmt.Printf("恢复会话 %s (%s)\n", sess.ID(), sess.Status())
			return sess, nil
		}
	}
	mode := domain.Mode(opts.Mode)
	if mode == "" {
		mode = domain.Mode(app.Config().Mode)
	}
	return app.Manager.Create(ctx, opts.SessionID, mode)
}

type repl struct {
	sess    *session.Session
	reader  *bufio.Scanner
	render  func(string)
	auto    bool
	pageCtx intent.Context
}

func (r *repl) readLine(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if !r.reader.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.reader.Text()), true
}

func (r *repl) command(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/todo", "/status":
		r.showTodo()
	case "/mode":
		if len(fields) < 2 {
			fmt.Printf("当前模式: %s\n", r.sess.Control().Mode())
			return false
		}
		if err := r.sess.SetMode(ctx, domain.Mode(fields[1])); err != nil {
			fmt.Printf("错误: %v\n", err)
		} else {
			fmt.Printf("已切换到 %s 模式\n", fields[1])
		}
	default:
		fmt.Printf("未知命令 %s\n", fields[0])
	}
	return false
}

func (r *repl) runGoal(ctx context.Context, goal string) error {
	result := r.sess.Start(ctx, goal, nil)
	if result.Err != nil {
		return fmt.Errorf("%s", result.Err.Message)
	}
	r.showTodo()
	return r.driveCheckpoints(ctx)
}

// utter routes free text through the intent pipeline.
func (r *repl) utter(ctx context.Context, text string) error {
	result, err := r.sess.HandleUtterance(ctx, text, r.pageCtx)
	if err != nil {
		return err
	}

	switch {
	case result.Started != nil:
		if result.Started.Err != nil {
			return fmt.Errorf("%s", result.Started.Err.Message)
		}
		r.showTodo()
		return r.driveCheckpoints(ctx)

	case result.NeedsConfirm:
		fmt.Println(result.Question)
		fmt.Print("确认执行? [y/N] ")
		line, _ := r.readLine(ctx)
		confirmed, err := r.sess.Confirm(ctx, isYes(line))
		if err != nil {
			return err
		}
		if confirmed.Started != nil {
			r.showTodo()
			return r.driveCheckpoints(ctx)
		}
		fmt.Println("已取消")

	case result.Question != "":
		fmt.Println(result.Question)
		for i, opt := range result.Options {
			fmt.Printf("  %d. %s\n", i+1, opt)
		}

	case result.GaveUp:
		if result.Message != "" {
			fmt.Println(result.Message)
		} else {
			fmt.Println("没有理解这条指令")
		}
	}
	return nil
}

func (r *repl) driveCheckpoints(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.sess.Status() == domain.LoopExecuting {
			if _, err := r.sess.Step(ctx); err != nil {
				return err
			}
			continue
		}
		if r.sess.Status() != domain.LoopWaiting {
			break
		}
		cp := r.sess.Loop().OpenCheckpoint()
		if cp == nil {
			break
		}
		r.render(tui.CheckpointMarkdown(cp))

		approve := true
		reason := ""
		if r.auto {
			fmt.Println("自动批准")
		} else {
			fmt.Print("批准这一步? [y/n] ")
			line, ok := r.readLine(ctx)
			if !ok {
				return ctx.Err()
			}
			approve = isYes(line)
			if !approve {
				fmt.Print("拒绝原因: ")
				reason, _ = r.readLine(ctx)
				if reason == "" {
					reason = "用户不同意"
				}
			}
		}

		var err error
		if approve {
			_, err = r.sess.Approve(ctx, runtime.ApproveRequest{ID: cp.ID})
		} else {
			_, err = r.sess.Reject(ctx, cp.ID, reason)
		}
		if err != nil {
			return err
		}
	}

	r.showTodo()
	switch r.sess.Status() {
	case domain.LoopCompleted:
		fmt.Println("目标完成")
	case domain.LoopFailed:
		fmt.Println("执行失败")
	}
	return nil
}

func (r *repl) showTodo() {
	loop := r.sess.Loop()
	r.render(tui.TodoMarkdown(loop.Goal(), loop.TodoList()))
}

func renderFunc(plain bool) func(string) {
	if plain {
		return func(md string) { fmt.Println(md) }
	}
	render := tui.NewRenderer()
	return func(md string) {
		out, err := render(md)
		if err != nil {
			fmt.Println(md)
			return
		}
		fmt.Print(out)
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "是", "好", "确认":
		return true
	}
	return false
}
