package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Zelak312/mflowinter/views"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log *logrus.Entry

type server struct {
	logger     *logrus.Entry
	queue      *Queue
	sqlite     *Sqlite
	poolWorker *PoolWorker
	hub        *Hub
}

func main() {
	// cli arguments
	configPath := flag.String("config_path", "./config.yml", "Path to the config yml file")
	flag.Parse()

	config, err := GetConfig(*configPath)
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}

	if err := InitLogFile(config.LogPath); err != nil {
		logrus.Fatal("Failed to init log file: ", err)
	}

	log, err = CreateLogger("main")
	if err != nil {
		logrus.Fatal(err)
	}

	log.WithFields(StructFields(config)).Debug("Loaded config")

	sqlite, err := NewSqlite(config.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer sqlite.Close()

	if err := sqlite.RunMigrations(); err != nil {
		log.Fatal(err)
	}

	jobs, err := sqlite.GetJobs()
	if err != nil {
		log.Fatal("Failed to load pending jobs: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := NewHub(mustLogger("ws"))
	go hub.Run(ctx)

	queue := NewQueue(jobs, hub)
	poolWorker := NewPoolWorker(ctx, mustLogger("worker"), queue, &config, sqlite, hub)
	dispatcherDone := make(chan struct{})
	go func() {
		poolWorker.RunDispatcher()
		close(dispatcherDone)
	}()

	s := &server{
		logger:     mustLogger("http"),
		queue:      queue,
		sqlite:     sqlite,
		poolWorker: poolWorker,
		hub:        hub,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(s.logger))
	r.HTMLRender = &views.HTMLTemplRenderer{}
	s.routes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.BindAddress, config.Port),
		Handler: r,
	}

	go func() {
		log.Info("Listening on ", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped: ", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down, waiting for workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown server: ", err)
	}

	<-dispatcherDone
	log.Info("Bye")
}

func mustLogger(name string) *logrus.Entry {
	logger, err := CreateLogger(name)
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func (s *server) routes(r *gin.Engine) {
	r.GET("/", s.statusPage)
	r.GET("/ping", s.ping)
	r.GET("/queue", s.listJobQueue)
	r.POST("/queue", s.addJobToQueue)
	r.DELETE("/queue/:id", s.delJobFromQueue)
	r.GET("/failed", s.listFailedJobs)
	r.GET("/workers", s.listWorkers)
	if s.hub != nil {
		r.GET("/ws", s.hub.HandleConnections)
	}
}

func (s *server) statusPage(c *gin.Context) {
	jobs := []views.JobRow{}
	for _, j := range s.queue.GetJobs() {
		jobs = append(jobs, views.JobRow{ID: j.ID, Path: j.Path, OutputPath: j.OutputPath})
	}

	workers := []views.WorkerRow{}
	for _, info := range s.poolWorker.GetWorkerInfos() {
		row := views.WorkerRow{ID: info.ID, Active: info.Active, Step: info.Step, Progress: info.Progress}
		if info.Job != nil {
			row.JobPath = info.Job.Path
		}
		workers = append(workers, row)
	}

	c.HTML(http.StatusOK, "", views.Status(jobs, workers))
}

func (s *server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func (s *server) addJobToQueue(c *gin.Context) {
	var job Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job.Done = false
	if _, err := s.sqlite.InsertJob(&job); err != nil {
		s.logger.Error("Failed to insert job: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to insert job"})
		return
	}

	s.logger.WithFields(StructFields(job)).Debug("Job added")
	s.queue.Enqueue(job)
	c.JSON(http.StatusOK, job)
}

func (s *server) delJobFromQueue(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, ok := s.queue.RemoveByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not in queue"})
		return
	}

	if err := s.sqlite.DeleteJobByID(nil, id); err != nil {
		s.logger.Error("Failed to delete job: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}

	s.logger.WithField("id", id).Debug("Job removed")
	c.JSON(http.StatusOK, job)
}

func (s *server) listJobQueue(c *gin.Context) {
	c.JSON(http.StatusOK, s.queue.GetJobs())
}

func (s *server) listFailedJobs(c *gin.Context) {
	failed, err := s.sqlite.GetFailedJobs()
	if err != nil {
		s.logger.Error("Failed to list failed jobs: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failed jobs"})
		return
	}

	c.JSON(http.StatusOK, failed)
}

func (s *server) listWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, s.poolWorker.GetWorkerInfos())
}
