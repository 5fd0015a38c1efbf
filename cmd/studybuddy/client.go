package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	studybuddy "github.com/MegaGrindStone/study-buddy"
	"github.com/MegaGrindStone/study-buddy/internal/handlers"
	"github.com/MegaGrindStone/study-buddy/internal/render"
	"github.com/MegaGrindStone/study-buddy/internal/services"
	"github.com/MegaGrindStone/study-buddy/internal/session"
	"github.com/MegaGrindStone/study-buddy/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetSession bool

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Serve the web chat client",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the terminal chat client",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a file to the upload endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the stored session identifier",
	Args:  cobra.NoArgs,
	RunE:  runSession,
}

// openSession loads (or creates) the identifier from the local store and builds the session around it.
func openSession(cmd *cobra.Command) (*session.Session, services.BoltDB, error) {
	store, err := services.NewBoltDB(cfg.StorePath)
	if err != nil {
		return nil, services.BoltDB{}, err
	}

	id, err := session.LoadIdentity(cmd.Context(), store)
	if err != nil {
		_ = store.Close()
		return nil, services.BoltDB{}, err
	}
	logger.Debug("Session loaded", zap.String("sessionID", id))

	chat := services.NewChatEndpoint(cfg.ChatEndpoint, nil)
	return session.New(id, chat, session.WithLogger(logger)), store, nil
}

func newUploader() *services.Uploader {
	if cfg.UploadEndpoint == "" {
		return nil
	}
	up := services.NewUploader(cfg.UploadEndpoint, nil)
	return &up
}

func runUI(cmd *cobra.Command, _ []string) error {
	sess, store, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var uploader handlers.Uploader
	if up := newUploader(); up != nil {
		uploader = up
	}

	m, err := handlers.NewMain(sess, render.NewMarkdown(), uploader, logger)
	if err != nil {
		return err
	}

	staticFS, err := fs.Sub(studybuddy.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/upload", m.HandleUpload)
	mux.HandleFunc("/transcript", m.HandleTranscript)
	mux.HandleFunc("/sse", m.HandleSSE)

	srv := &http.Server{
		Addr:              listenAddr(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", zap.String("err", err.Error()))
		}
	})

	return runServer(cmd.Context(), srv)
}

func runChat(cmd *cobra.Command, _ []string) error {
	sess, store, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var uploader tui.Uploader
	if up := newUploader(); up != nil {
		uploader = up
	}

	model := tui.NewModel(cmd.Context(), sess, uploader, logger)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

func runSend(cmd *cobra.Command, args []string) error {
	sess, store, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ex, ok := sess.Send(cmd.Context(), strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("message is empty")
	}

	reply, err := ex.Wait(cmd.Context())
	if err != nil {
		return err
	}

	out, err := glamour.Render(reply.Text, "auto")
	if err != nil {
		out = reply.Text + "\n"
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	return ex.Err()
}

func runUpload(cmd *cobra.Command, args []string) error {
	up := newUploader()
	if up == nil {
		return fmt.Errorf("upload endpoint is not configured")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	res, err := up.Upload(cmd.Context(), filepath.Base(args[0]), f)
	if err != nil {
		logger.Error("Error uploading file", zap.String("err", err.Error()))
		return err
	}
	logger.Info("File uploaded successfully", zap.String("fileName", res.FileName))
	fmt.Fprintln(cmd.OutOrStdout(), res.FileName)
	return nil
}

func runSession(cmd *cobra.Command, _ []string) error {
	store, err := services.NewBoltDB(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if resetSession {
		if err := store.DeleteIdentity(cmd.Context(), session.IdentityKey); err != nil {
			return fmt.Errorf("failed to reset session identifier: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "session identifier cleared")
		return nil
	}

	id, err := session.LoadIdentity(cmd.Context(), store)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
