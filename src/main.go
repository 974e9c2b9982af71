package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"OlistTraining/src/config"
	"OlistTraining/src/datasource/file"
	"OlistTraining/src/storage"

	"github.com/robfig/cron"
)

func main() {
	var (
		jsonFolder = flag.String("config", "./config", "配置文件目录")
		mode       = flag.String("mode", "", "运行模式 once/cron/watch，覆盖配置文件")
		pidFile    = flag.String("pidfile", "olist.pid", "常驻模式下写入进程号，供 reload 发送 SIGHUP")
	)
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*jsonFolder, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}
	if *mode != "" {
		cfg.Schedule.Mode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	a, err := newApp(cfg, dcfg, logger)
	if err != nil {
		logger.Fatal(err.Error())
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.Mode == config.ModeOnce {
		files, err := a.runOnce(ctx)
		if err != nil {
			logger.Error(err.Error())
			logger.Close()
			log.Fatal(err)
		}
		fmt.Println("训练表已生成:", files)
		return
	}

	if err := writePid(*pidFile); err != nil {
		logger.Warning("写入pid文件失败: " + err.Error())
	} else {
		defer os.Remove(*pidFile)
	}
	go handleReload(ctx, logger)

	// 启动时先计算一次
	a.trigger(ctx, "启动")

	switch cfg.Schedule.Mode {
	case config.ModeCron:
		err = runCron(ctx, a, cfg.Schedule.CronSpec)
	case config.ModeWatch:
		err = runWatch(ctx, a, time.Duration(cfg.Schedule.Debounce))
	}
	if err != nil {
		logger.Error(err.Error())
		logger.Close()
		log.Fatal(err)
	}
	logger.Info("收到退出信号，服务已停止")
}

func runCron(ctx context.Context, a *app, spec string) error {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		a.trigger(ctx, "定时任务 "+spec)
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	c.Start()
	defer c.Stop()

	a.logger.Info(fmt.Sprintf("定时计算已启动(%s)，按Ctrl+C退出", spec))
	<-ctx.Done()
	return nil
}

func runWatch(ctx context.Context, a *app, debounce time.Duration) error {
	monitor, err := file.NewFileMonitor(a.cfg.DataDir, debounce, a.provider.Paths()...)
	if err != nil {
		return fmt.Errorf("创建文件监控失败: %w", err)
	}
	defer monitor.Close()

	a.logger.Info("开始监控数据目录: " + a.cfg.DataDir)
	err = monitor.Watch(ctx, func(path string) {
		a.trigger(ctx, "文件更新 "+path)
	})
	if err != nil {
		return fmt.Errorf("文件监控出错: %w", err)
	}
	return nil
}

// handleReload 收到 SIGHUP 时重新打开日志文件，配合外部 logrotate
func handleReload(ctx context.Context, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			if err := logger.Reopen(""); err != nil {
				log.Printf("Failed to reopen log: %v", err)
				continue
			}
			logger.Info("Received SIGHUP, log file reopened")
		}
	}
}

func writePid(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}
