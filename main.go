package main

import (
	"context"
	"embed"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/bindings"
	"github.com/MJE43/czn-savedata-calc/internal/config"
	"github.com/MJE43/czn-savedata-calc/internal/livehttp"
	"github.com/MJE43/czn-savedata-calc/internal/logging"
	"github.com/MJE43/czn-savedata-calc/internal/secrets"
	"github.com/MJE43/czn-savedata-calc/internal/session"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	appConfigDirName = "czn-savedata-calc"
	secretsFileName  = "secrets.json"
	repoURL          = "https://github.com/MJE43/czn-savedata-calc"
)

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

func buildWindowsOptions(log *zap.Logger) *windows.Options {
	return &windows.Options{
		BackdropType: windows.Mica,
		Theme:        windows.SystemDefault,
		CustomTheme: &windows.ThemeSettings{
			DarkModeTitleBar:  windows.RGB(24, 24, 32),
			DarkModeTitleText: windows.RGB(226, 232, 240),
			DarkModeBorder:    windows.RGB(51, 65, 85),

			LightModeTitleBar:  windows.RGB(248, 250, 252),
			LightModeTitleText: windows.RGB(15, 23, 42),
			LightModeBorder:    windows.RGB(226, 232, 240),
		},
		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,
		ZoomFactor:           1.0,
		WindowClassName:      "CZNSaveDataCalcWindow",
		OnSuspend: func() {
			log.Debug("windows entering low power mode")
		},
		OnResume: func() {
			log.Debug("windows resuming from low power mode")
		},
	}
}

func buildMacOptions() *mac.Options {
	return &mac.Options{
		TitleBar: &mac.TitleBar{
			HideToolbarSeparator: true,
		},
		About: &mac.AboutInfo{
			Title: "CZN Save Data Calculator",
			Message: "Tracks Faint Memory Points spent per character against the run's point limit.\n\n" +
				"Built with Wails",
		},
	}
}

func buildLinuxOptions() *linux.Options {
	return &linux.Options{
		WindowIsTranslucent: false,
		WebviewGpuPolicy:    linux.WebviewGpuPolicyOnDemand,
		ProgramName:         "czn-savedata-calc",
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Must("error", false).Fatal("load config", zap.Error(err))
	}

	log := logging.Must(cfg.LogLevel, cfg.LogDevelopment)
	defer log.Sync()
	log.Info("starting CZN save data calculator", zap.String("go_version", runtime.Version()))

	rules, err := cfg.Rules()
	if err != nil {
		log.Fatal("load rule set", zap.Error(err))
	}
	sess := session.New(cfg.RunConfig(), rules, log.Named("session"))
	app := bindings.New(sess, log)

	fallback := cfg.SecretsFallback
	if fallback == "" {
		fallback = filepath.Join(appDataDir(), secretsFileName)
	}
	token, err := cfg.ResolveAPIToken(secrets.NewStore(cfg.KeyringService, fallback))
	if err != nil {
		log.Warn("api token unavailable; mutating routes are unauthenticated", zap.Error(err))
	}
	httpMod := livehttp.NewModule(cfg.HTTPAddr, sess, log, token)

	startup := func(ctx context.Context) {
		app.Startup(ctx)
		setAppContext(ctx)

		if err := httpMod.Startup(ctx); err != nil {
			log.Error("local api failed to start", zap.String("addr", cfg.HTTPAddr), zap.Error(err))
			return
		}
		info := httpMod.Info()
		log.Info("local api ready", zap.String("url", info.URL), zap.Bool("token_enabled", info.TokenEnabled))
	}

	beforeClose := func(ctx context.Context) (prevent bool) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := httpMod.Shutdown(shutdownCtx); err != nil {
			log.Warn("local api shutdown", zap.Error(err))
		}
		app.Shutdown(ctx)
		setAppContext(nil)
		log.Info("application is closing")
		return false
	}

	if err := wails.Run(&options.App{
		Title:            "CZN Save Data Calculator",
		Width:            1280,
		Height:           820,
		MinWidth:         960,
		MinHeight:        640,
		WindowStartState: options.Normal,
		BackgroundColour: &options.RGBA{R: 24, G: 24, B: 32, A: 255},

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnShutdown: func(ctx context.Context) {
			log.Info("application shutdown complete")
		},

		Menu: buildAppMenu(app, log),
		Bind: []interface{}{app, httpMod},

		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		EnableDefaultContextMenu: false,

		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "4b7e2a10-czn-savedata-calc",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				log.Info("second instance launch prevented", zap.Strings("args", data.Args))
			},
		},

		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     false,
			DisableWebViewDrop: true,
		},

		Windows: buildWindowsOptions(log),
		Mac:     buildMacOptions(),
		Linux:   buildLinuxOptions(),
	}); err != nil {
		log.Fatal("run wails app", zap.Error(err))
	}

	log.Info("application exited normally")
}

// appDataDir returns an OS-appropriate writable directory.
func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appConfigDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appConfigDirName)
	}
	return "."
}

func buildAppMenu(app *bindings.App, log *zap.Logger) *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	fileMenu := menu.NewMenu()
	fileMenu.AddText("Reset Run", keys.Combo("n", keys.CmdOrCtrlKey, keys.ShiftKey), func(_ *menu.CallbackData) {
		app.ResetRun()
	})
	fileMenu.AddText("Open Data Directory", keys.CmdOrCtrl("o"), func(_ *menu.CallbackData) {
		withAppContext(log, func(ctx context.Context) {
			openPathInExplorer(ctx, log, appDataDir())
		})
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(log, func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("File", fileMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Reload Frontend", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		withAppContext(log, func(ctx context.Context) {
			wruntime.WindowReloadApp(ctx)
		})
	})
	viewMenu.AddText("Toggle Fullscreen", keys.Combo("f", keys.CmdOrCtrlKey, keys.ShiftKey), func(_ *menu.CallbackData) {
		withAppContext(log, toggleFullscreen)
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	helpMenu := menu.NewMenu()
	helpMenu.AddText("Project Repository", nil, func(_ *menu.CallbackData) {
		withAppContext(log, func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, repoURL)
		})
	})
	rootMenu.Append(menu.SubMenu("Help", helpMenu))

	return rootMenu
}

func openPathInExplorer(ctx context.Context, log *zap.Logger, path string) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.Warn("create data directory", zap.String("path", path), zap.Error(err))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	wruntime.BrowserOpenURL(ctx, fileURI(abs))
}

func fileURI(path string) string {
	clean := filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(clean) > 0 && clean[0] != '/' {
		clean = "/" + clean
	}
	u := url.URL{Scheme: "file", Path: clean}
	return u.String()
}

func toggleFullscreen(ctx context.Context) {
	if wruntime.WindowIsFullscreen(ctx) {
		wruntime.WindowUnfullscreen(ctx)
		return
	}
	wruntime.WindowFullscreen(ctx)
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(log *zap.Logger, action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		log.Debug("application context not initialised; ignoring menu action")
		return
	}
	action(ctx)
}
