package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/shaun/pagesdeploy/internal/config"
	"github.com/shaun/pagesdeploy/internal/deploy"
	"github.com/shaun/pagesdeploy/internal/github"
	"github.com/shaun/pagesdeploy/internal/publish"
)

var (
	app = kingpin.New("pagesdeploy", "Publish a static page to a GitHub repository through the contents API.")

	debug   = app.Flag("debug", "Enable debug logging.").Bool()
	cfgFile = app.Flag("config", "Persisted configuration file (.json, .yaml).").Default(config.DefaultFile).String()
	envFile = app.Flag("env-file", "Environment file loaded before reading GH_* variables.").Default(".env").String()

	flagToken   = app.Flag("token", "GitHub token (GH_TOKEN).").String()
	flagOwner   = app.Flag("owner", "Repository owner (GH_OWNER).").String()
	flagRepo    = app.Flag("repo", "Repository name (GH_REPO).").String()
	flagBranch  = app.Flag("branch", "Target branch (GH_BRANCH).").String()
	flagPath    = app.Flag("path", "Path of the file in the repository (GH_PATH).").String()
	flagAPIURL  = app.Flag("api-url", "GitHub REST API base URL (GH_API_URL).").String()
	flagRepoURL = app.Flag("repo-url", "Repository URL, e.g. https://github.com/owner/repo.").String()
	flagTimeout = app.Flag("timeout", "Timeout of each GitHub request.").Duration()
	strictProbe = app.Flag("strict-probe", "Abort when the remote revision cannot be checked.").Bool()

	flagRetries optionalInt

	deployCmd     = app.Command("deploy", "Upload a local file, replacing the remote one.").Default()
	deployFile    = deployCmd.Arg("file", "Local file to publish.").Default("index.html").String()
	deployMessage = deployCmd.Flag("message", "Commit message.").Short('m').String()
	deployLocal   = deployCmd.Flag("local", "Read and check the file without uploading.").Bool()
	deployCleanup = deployCmd.Flag("cleanup", "Remove the local file after a successful deploy.").Bool()
	skipUnchanged = deployCmd.Flag("skip-unchanged", "Do not commit when the remote content is identical.").Bool()

	touchCmd  = app.Command("touch", "Append a deploy marker to the remote file instead of replacing it.")
	touchPath = touchCmd.Arg("path", "Path in the repository; defaults to --path.").String()

	filesCmd = app.Command("files", "List the files on the target branch and check the file limit.")
	filesDir = filesCmd.Arg("dir", "Directory to list.").String()

	initCmd = app.Command("init", "Save token, owner and repo to the configuration file.")

	serveCmd      = app.Command("serve", "Accept deploys over HTTP.")
	serveAddr     = serveCmd.Flag("addr", "Listen address; PORT overrides the port.").Default(":8080").String()
	serveUser     = serveCmd.Flag("user", "Basic auth user required by the server.").Envar("DEPLOY_USER").String()
	servePassword = serveCmd.Flag("password", "Basic auth password required by the server.").Envar("DEPLOY_PASSWORD").String()
	serveHistory  = serveCmd.Flag("history", "Number of deploy records kept in memory.").Default("256").Int()
)

func init() {
	app.Flag("retries", "Extra attempts after a conflict or network failure (GH_RETRIES).").SetValue(&flagRetries)
}

// optionalInt is an int flag that remembers whether it was given.
type optionalInt struct{ v *int }

func (o *optionalInt) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.v = &n
	return nil
}

func (o *optionalInt) String() string {
	if o.v == nil {
		return ""
	}
	return strconv.Itoa(*o.v)
}

func main() {
	app.Version("pagesdeploy 1.0.0")
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))
	flush := logInject(*debug, cmd == serveCmd.FullCommand())
	code := run(context.Background(), cmd, os.Stdout)
	flush()
	os.Exit(code)
}

func logInject(debug, server bool) func() error {
	atom := zap.NewAtomicLevel()
	switch {
	case debug:
		atom.SetLevel(zap.DebugLevel)
	case server:
		atom.SetLevel(zap.InfoLevel)
	default:
		atom.SetLevel(zap.WarnLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	if !server {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	zap.ReplaceGlobals(logger)
	zap.L().Debug("debug enabled")
	return logger.Sync
}

func run(ctx context.Context, cmd string, out io.Writer) int {
	err := dispatch(ctx, cmd, out)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, deploy.Describe(err))
	if publish.KindOf(err) == publish.ConfigError {
		return 2
	}
	return 1
}

func dispatch(ctx context.Context, cmd string, out io.Writer) error {
	cfg, err := config.Load(config.Source{File: *cfgFile, EnvFile: *envFile}, config.Flags{
		Token:   *flagToken,
		Owner:   *flagOwner,
		Repo:    *flagRepo,
		Branch:  *flagBranch,
		Path:    *flagPath,
		APIURL:  *flagAPIURL,
		RepoURL: *flagRepoURL,
		Timeout: *flagTimeout,
		Retries: flagRetries.v,
	})
	if err != nil {
		return &publish.Failure{Kind: publish.ConfigError, Message: err.Error(), Err: err}
	}

	if cmd == deployCmd.FullCommand() && *deployLocal {
		return deployLocalOnly(cfg, out)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch cmd {
	case initCmd.FullCommand():
		if err := config.Save(*cfgFile, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s/%s to %s.\n", cfg.Owner, cfg.Repo, *cfgFile)
		return nil
	case serveCmd.FullCommand():
		svc, err := newService(cfg)
		if err != nil {
			return err
		}
		return serve(ctx, svc)
	}

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deploying to %s\n", cfg.Target())
	switch cmd {
	case touchCmd.FullCommand():
		res, err := svc.Touch(ctx, *touchPath)
		if err != nil {
			return err
		}
		deploy.Report(out, res)
	case filesCmd.FullCommand():
		st, err := svc.Files(ctx, *filesDir)
		if err != nil {
			return err
		}
		deploy.ReportStatus(out, st)
	default:
		res, err := svc.DeployFile(ctx, *deployFile, deploy.FileOptions{
			Message: *deployMessage,
			Cleanup: *deployCleanup,
		})
		if err != nil {
			return err
		}
		deploy.Report(out, res)
	}
	return nil
}

func newService(cfg *config.Config) (*deploy.Service, error) {
	gh, err := github.NewClient(cfg.Token, github.Options{BaseURL: cfg.APIURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, &publish.Failure{Kind: publish.ConfigError, Message: err.Error(), Err: err}
	}
	maxBytes, err := cfg.MaxBytes()
	if err != nil {
		return nil, &publish.Failure{Kind: publish.ConfigError, Message: err.Error(), Err: err}
	}
	pub := publish.New(gh, publish.Options{
		StrictProbe:   *strictProbe,
		SkipUnchanged: *skipUnchanged,
		Timeout:       cfg.Timeout,
		Logger:        zap.L(),
	})
	return deploy.NewService(pub, gh, deploy.Options{
		Target:    cfg.Target(),
		Path:      cfg.Path,
		Retries:   cfg.Retries,
		MaxBytes:  maxBytes,
		FileLimit: cfg.FileLimit,
		Logger:    zap.L(),
	}), nil
}

// deployLocalOnly checks the artifact without credentials or network.
func deployLocalOnly(cfg *config.Config, out io.Writer) error {
	maxBytes, err := cfg.MaxBytes()
	if err != nil {
		return &publish.Failure{Kind: publish.ConfigError, Message: err.Error(), Err: err}
	}
	svc := deploy.NewService(nil, nil, deploy.Options{MaxBytes: maxBytes, Logger: zap.L()})
	data, err := svc.ReadArtifact(*deployFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Local mode: %s is %d bytes (blob %.7s), nothing uploaded.\n", *deployFile, len(data), publish.BlobSHA(data))
	return nil
}
