package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/image-handler/internal/classify"
	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/lambdaboot"
	"github.com/fpang/image-handler/internal/logging"
	"github.com/fpang/image-handler/internal/request"
	"github.com/fpang/image-handler/internal/server"
	"github.com/fpang/image-handler/internal/signature"
	"github.com/fpang/image-handler/internal/thumbor"
)

// CLI flags
var (
	envFileFlag string
	addrFlag    string
	bucketFlag  string
	keyFlag     string
	editsFlag   string
	formatFlag  string
	outputFlag  string
	acceptFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "image-handler",
	Short: "Serve and render image requests locally",
	Long: `image-handler runs the image request pipeline outside Lambda.

Configuration is read from the environment, after loading a .env file if
one exists. STORAGE_BACKEND=local with STORAGE_ROOT=./testdata serves
buckets from sub-directories.

Examples:
  image-handler serve --addr :8080
  image-handler translate /fit-in/200x200/filters:grayscale()/photo.jpg
  image-handler encode --bucket images --key photo.jpg --edits '{"resize":{"width":100}}'
  image-handler render /200x0/photo.jpg -o out.jpg`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFileFlag); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if os.Getenv("LOG_FORMAT") == "" {
			os.Setenv("LOG_FORMAT", "console")
		}
		logging.Init()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a local HTTP server",
	Args:  cobra.NoArgs,
	Run:   runServe,
}

var translateCmd = &cobra.Command{
	Use:   "translate <legacy-path>",
	Short: "Print the edit set a legacy URL path maps to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, thumbor.MapPathToEdits(args[0]))
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the structured request path for a bucket, key and edits",
	Args:  cobra.NoArgs,
	RunE:  runEncode,
}

var renderCmd = &cobra.Command{
	Use:   "render <path>",
	Short: "Render one request path to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file to load")

	serveCmd.Flags().StringVar(&addrFlag, "addr", ":8080", "Address to listen on")

	encodeCmd.Flags().StringVar(&bucketFlag, "bucket", "", "Source bucket (defaults to the first allowed bucket)")
	encodeCmd.Flags().StringVar(&keyFlag, "key", "", "Object key")
	encodeCmd.Flags().StringVar(&editsFlag, "edits", "", "Edits as a JSON object")
	encodeCmd.Flags().StringVar(&formatFlag, "format", "", "Output format")
	encodeCmd.MarkFlagRequired("key")

	renderCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "File to write the rendered image to")
	renderCmd.Flags().StringVar(&acceptFlag, "accept", "", "Accept header to send")
	renderCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(serveCmd, translateCmd, encodeCmd, renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildService wires the service for local use. AWS is only touched when
// the storage backend or the signing secret need it; without it smart crop
// and content moderation fail with InternalError.
func buildService(cfg config.Config) *server.Service {
	initStart := time.Now()
	needsAWS := cfg.Storage.Backend == config.BackendS3 || cfg.Storage.Backend == "" ||
		(cfg.EnableSignature && cfg.SecretKey == "")

	var (
		clients    lambdaboot.AWSClients
		classifier classify.Classifier
		ssmClient  signature.SSMAPI
	)
	if needsAWS {
		clients = lambdaboot.InitAWS(cfg.Storage.Region)
		classifier = classify.NewRekognition(clients.Config)
		ssmClient = clients.SSM
	}
	store := lambdaboot.InitStore(clients, cfg.Storage)
	secrets := lambdaboot.InitSecrets(ssmClient, cfg)
	svc := lambdaboot.NewService(cfg, store, classifier, secrets)
	lambdaboot.StartupLog("image-handler", cfg, initStart).Log()
	return svc
}

func runServe(cmd *cobra.Command, args []string) {
	svc := buildService(config.FromEnv())
	svc.WithMetrics(nil)

	srv := &http.Server{
		Addr:         addrFlag,
		Handler:      svc.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", addrFlag).Msg("Starting image server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func runEncode(cmd *cobra.Command, args []string) error {
	req := request.Request{Key: keyFlag}
	if bucketFlag != "" {
		req.Bucket = &bucketFlag
	}
	if editsFlag != "" {
		if !json.Valid([]byte(editsFlag)) {
			return fmt.Errorf("--edits is not valid JSON")
		}
		req.Edits = json.RawMessage(editsFlag)
	}
	if formatFlag != "" {
		req.OutputFormat = edits.Format(formatFlag)
	}
	path, err := req.Encode()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	svc := buildService(config.FromEnv()).WithMetrics(nil)
	ev := request.Event{Path: args[0]}
	if acceptFlag != "" {
		ev.Headers = map[string]string{"Accept": acceptFlag}
	}

	resp := svc.Handle(cmd.Context(), ev)
	if resp.StatusCode != http.StatusOK || !resp.IsBase64Encoded {
		return fmt.Errorf("render failed with status %d: %s", resp.StatusCode, resp.Body)
	}
	body, err := base64.StdEncoding.DecodeString(resp.Body)
	if err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := os.WriteFile(outputFlag, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputFlag, err)
	}
	log.Info().
		Str("output", outputFlag).
		Str("contentType", resp.Headers["Content-Type"]).
		Int("bytes", len(body)).
		Msg("Image rendered")
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
