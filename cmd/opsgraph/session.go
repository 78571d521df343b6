package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/davidahmann/opsgraph/core/audit"
	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/graph"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/projectconfig"
	"github.com/davidahmann/opsgraph/core/repository"
	"github.com/davidahmann/opsgraph/core/store"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

type commonFlags struct {
	configPath string
	dbPath     string
	actor      string
	ip         string
	role       string
	jsonOutput bool
	helpFlag   bool
}

func (c *commonFlags) bind(flagSet *flag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "path to config file (default "+projectconfig.DefaultPath+")")
	flagSet.StringVar(&c.dbPath, "db", "", "path to the graph database")
	flagSet.StringVar(&c.actor, "actor", "", "actor id recorded in the audit trail")
	flagSet.StringVar(&c.ip, "ip", "", "actor address recorded in the audit trail")
	flagSet.StringVar(&c.role, "role", "", "caller role: anonymous, consumer, contributor or admin")
	flagSet.BoolVar(&c.jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&c.helpFlag, "help", false, "show help")
}

type session struct {
	ctx     context.Context
	config  projectconfig.Config
	store   *store.Store
	repo    *repository.Repository
	service *graph.Service
	caller  model.Caller
	logger  *slog.Logger
}

// loadConfig reads the config file. The default path may be absent; an
// explicit --config path must exist.
func loadConfig(common commonFlags) (projectconfig.Config, error) {
	path := strings.TrimSpace(common.configPath)
	allowMissing := path == ""
	if allowMissing {
		path = projectconfig.DefaultPath
	}
	configuration, err := projectconfig.Load(path, allowMissing)
	if err != nil {
		return projectconfig.Config{}, coreerrors.Invalid("%v", err)
	}
	return configuration, nil
}

func openSession(ctx context.Context, common commonFlags) (*session, error) {
	configuration, err := loadConfig(common)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.New(configuration.Log.Level, configuration.Log.Format, os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	dbPath := strings.TrimSpace(common.dbPath)
	if dbPath == "" {
		dbPath = configuration.Store.Path
	}
	busyTimeout, err := configuration.BusyTimeout()
	if err != nil {
		return nil, coreerrors.Invalid("%v", err)
	}
	opened, err := store.Open(ctx, store.Options{Path: dbPath, BusyTimeout: busyTimeout})
	if err != nil {
		return nil, err
	}
	repo := repository.New(opened.DB(), repository.Options{})
	recorder := audit.New(opened.DB(), audit.Options{MirrorPath: configuration.Audit.MirrorPath})

	caller, err := resolveCaller(ctx, repo, configuration, common)
	if err != nil {
		_ = opened.Close()
		return nil, err
	}
	logger.Debug("session opened", "db", opened.Path(), "actor_id", caller.ActorID, "role", string(caller.Role))
	return &session{
		ctx:     ctx,
		config:  configuration,
		store:   opened,
		repo:    repo,
		service: graph.New(repo, recorder),
		caller:  caller,
		logger:  logger,
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close database", "error", err)
	}
}

// resolveCaller builds the caller context. The role comes from --role, then
// caller.role in the config, then the actor's users row; anything else is
// anonymous.
// resolveCaller takes the actor's role from the users table. A role from
// --role or caller.role may only lower it.
func resolveCaller(ctx context.Context, repo *repository.Repository, configuration projectconfig.Config, common commonFlags) (model.Caller, error) {
	actor := firstNonEmpty(common.actor, configuration.Caller.Actor)
	ip := firstNonEmpty(common.ip, configuration.Caller.IP)
	caller := model.Caller{ActorID: actor, ActorIP: ip, Role: model.RoleAnonymous}

	var requested model.Role
	if rawRole := firstNonEmpty(common.role, configuration.Caller.Role); rawRole != "" {
		role, err := model.ParseRole(rawRole)
		if err != nil {
			return model.Caller{}, err
		}
		requested = role
	}
	if actor != "" {
		user, found, err := repo.GetUser(ctx, actor)
		if err != nil {
			return model.Caller{}, err
		}
		if found {
			caller.Role = user.Role
		}
	}
	if requested == "" {
		return caller, nil
	}
	if requested.Rank() > caller.Role.Rank() {
		return model.Caller{}, coreerrors.Wrap(
			fmt.Errorf("role %q exceeds the role %q stored for actor %q", requested, caller.Role, actor),
			coreerrors.CategoryPermissionDenied,
			coreerrors.CodePermissionDenied,
			"grant the role with `opsgraph user update` or drop --role",
			false,
		)
	}
	caller.Role = requested
	return caller, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
