package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"google.golang.org/grpc"

	"github.com/annelo/driftsync/internal/config"
	"github.com/annelo/driftsync/internal/logging"
	"github.com/annelo/driftsync/internal/protocol"
	"github.com/annelo/driftsync/internal/registry"
	"github.com/annelo/driftsync/internal/service"
)

var (
	configPath = flag.String("config", "", "Путь к YAML-конфигурации (пусто = значения по умолчанию)")
	port       = flag.Int("port", 0, "Порт для gRPC сервера (0 = из конфигурации)")
	seed       = flag.Int64("seed", 0, "Сид для генерации арены (0 = из конфигурации)")
	logLevel   = flag.String("log-level", "", "Уровень логирования (пусто = из конфигурации)")
	noConsole  = flag.Bool("no-console", false, "Не запускать консоль администратора")
)

func main() {
	// Парсим флаги командной строки
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Не удалось создать логгер: %v", err)
	}
	defer logger.Sync()

	reg := registry.New()
	syncService, err := service.NewSyncService(cfg, reg, service.WithLogger(logger))
	if err != nil {
		logger.Fatalf("Не удалось создать сервис: %v", err)
	}

	// Создаем TCP-слушатель
	lis, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		logger.Fatalf("Не удалось создать слушателя: %v", err)
	}

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(protocol.Codec{}))
	// Схема для grpcurl: proto/driftsync/v1/sync.proto (reflection не поддерживается)
	syncService.RegisterServer(grpcServer)

	// Создаем контекст для управления сервисными задачами
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	syncService.Start(ctx)

	stop := func() {
		syncService.Stop()
		cancel()
		grpcServer.GracefulStop()
	}

	// Обрабатываем сигналы для корректного завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		logger.Info("Получен сигнал завершения, останавливаем сервер...")
		stop()
	}()

	registerCommands(reg, syncService, stop)
	reg.RegisterHook(registry.HookSubscriberJoined, func(args ...any) {
		logger.Debugf("subscriber joined: %v", args)
	})

	if !*noConsole {
		go runConsole(reg)
	}

	logger.Infof("Сервер синхронизации запущен на %s", cfg.Address())
	logger.Infof("Используется сид арены: %d", syncService.Seed())

	if err := grpcServer.Serve(lis); err != nil {
		logger.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// runConsole: REPL администратора на stdin.
func runConsole(reg *registry.Registry) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		out, err := reg.Execute(strings.TrimSpace(line))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Print(out)
	}
}
