package bootstrap

import (
	"context"
	"log"

	"qna-dialog-be/internal/config"
	"qna-dialog-be/internal/constant"
	"qna-dialog-be/internal/controller"
	"qna-dialog-be/internal/pkg/logger"
	"qna-dialog-be/internal/repository/contract"
	"qna-dialog-be/internal/repository/memory"
	"qna-dialog-be/internal/repository/redisstore"
	"qna-dialog-be/internal/repository/unitofwork"
	"qna-dialog-be/internal/service"
	"qna-dialog-be/pkg/dialog"
	"qna-dialog-be/pkg/dialog/policy"
	"qna-dialog-be/pkg/qna"
	"qna-dialog-be/pkg/qna/spell"

	pkgNats "qna-dialog-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DialogController controller.IDialogController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pkgNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// 3. Live Conversation State Store
	var stateRepo contract.ConversationStateRepository
	if cfg.App.StoreBackend == "redis" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		stateRepo = redisstore.NewConversationStateRepository(rdb)
		log.Printf("[INFO] Using Conversation Store: REDIS")
	} else {
		stateRepo = memory.NewConversationStateRepository()
		log.Printf("[INFO] Using Conversation Store: MEMORY")
	}

	// 4. Dialog Engine
	dialogLogger := service.InitDialogLogger()

	gateway := qna.NewHTTPGateway(
		cfg.Gateway.SearchBaseURL,
		cfg.Gateway.QnaBaseURL,
		cfg.Gateway.Timeout,
		dialogLogger,
	)
	corrector := spell.NewCorrector(cfg.Gateway.SpellBaseURL, cfg.Gateway.Timeout, dialogLogger)

	thresholds := policy.Thresholds{
		QnaMinConfidence:       cfg.Dialog.QnaMinConfidence,
		QnaConfidencePrompt:    cfg.Dialog.QnaConfidencePrompt,
		ChoiceConfidenceDelta:  cfg.Dialog.ChoiceConfidenceDelta,
		AnswerUncertainWarning: cfg.Dialog.AnswerUncertainWarning,
		MaxSuggestions:         cfg.Dialog.MaxSuggestions,
		ContextCap:             cfg.Dialog.ContextCap,
	}
	machine := dialog.NewMachine(gateway, thresholds, dialogLogger)

	// 5. Services
	publisherService := service.NewPublisherService(constant.RecordTurnTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		constant.RecordTurnTopic,
		uowFactory,
	)

	// Turn analytics tails the NATS stream into its own log file
	if natsSub != nil {
		analyticsLogger := logger.NewIsolatedLogger("logs/analytics.log")
		analyticsService := service.NewAnalyticsService(natsSub, analyticsLogger)
		go func() {
			if err := analyticsService.Start(); err != nil {
				log.Printf("[WARN] Failed to start analytics consumer: %v", err)
			}
		}()
	}

	dialogService := service.NewDialogService(
		uowFactory,
		stateRepo,
		machine,
		corrector,
		publisherService,
		natsPub,
		sysLogger,
	)

	// 6. Controllers
	return &Container{
		DialogController: controller.NewDialogController(dialogService),

		ConsumerService: consumerService,
	}
}
