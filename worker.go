package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/sirupsen/logrus"
)

const retryLimit = 5

type Worker struct {
	logger     *logrus.Entry
	poolWorker *PoolWorker
	hub        *Hub
	lock       sync.RWMutex

	workerInfo WorkerInfo
}

type WorkerInfo struct {
	ID       int     `json:"id"`
	Active   bool    `json:"active"`
	Step     string  `json:"step"`
	Progress float64 `json:"progress"`
	Job      *Job    `json:"job"`
}

type ProcessJobOutput struct {
	err                    error
	output                 string
	skip                   bool
	jobNotFound            bool
	outputFileAlreadyExist bool
	checksum               uint64
}

func NewWorker(id int, logger *logrus.Entry, poolWorker *PoolWorker, hub *Hub) *Worker {
	return &Worker{
		logger:     logger,
		poolWorker: poolWorker,
		hub:        hub,
		workerInfo: WorkerInfo{ID: id},
	}
}

func ShouldUseTempFile(job *Job, deleteOutputIfAlreadyExist bool) (bool, error) {
	samePath, err := IsSamePath(job.Path, job.OutputPath)
	if err != nil {
		return false, err
	}

	if samePath {
		return true, nil
	}

	outputExist, err := PathExist(job.OutputPath)
	if err != nil {
		return false, err
	}

	return outputExist && deleteOutputIfAlreadyExist, nil
}

func (w *Worker) start(workChannel <-chan Job) {
	defer w.poolWorker.waitGroup.Done()

	for job := range workChannel {
		job := job
		w.lock.Lock()
		w.workerInfo.Active = true
		w.workerInfo.Job = &job
		w.lock.Unlock()

		err := w.doWork(&job)

		w.lock.Lock()
		w.workerInfo.Active = false
		w.workerInfo.Job = nil
		w.workerInfo.Step = ""
		w.workerInfo.Progress = 0
		w.lock.Unlock()

		if errors.Is(w.poolWorker.ctx.Err(), context.Canceled) {
			w.logger.Debug("Ctx was canceled")
			return
		}

		if err != nil {
			w.logger.Warn(err)
		}

		w.sendUpdate()
	}
}

func (w *Worker) doWork(job *Job) error {
	result := w.processJob(job)
	if w.poolWorker.ctx.Err() != nil {
		// The context is cancelled, the job stays in the database
		// and is picked up again on the next start
		return nil
	}

	if result.jobNotFound {
		notFoundErr := errors.New("source video or vector file not found")
		w.logger.WithFields(StructFields(job)).Error(notFoundErr)
		_ = w.failJob(job, result.output, notFoundErr)
		return notFoundErr
	}

	if result.err != nil {
		w.handleProcessJobError(job, &result)
		// Error was handled already
		return nil
	}

	if result.skip && !result.outputFileAlreadyExist && *w.poolWorker.config.CopyFileToDestinationOnSkip {
		w.logger.WithField("srcPath", job.Path).
			WithField("destPath", job.OutputPath).
			Debug("Copying file to destination since it has been skipped")
		ok, err := IsSamePath(job.Path, job.OutputPath)
		if err != nil {
			w.logger.Error("Failed to match same path: ", err)
			return err
		}

		if !ok {
			if err := CopyFile(job.Path, job.OutputPath); err != nil {
				w.logger.Error("Failed to copy file to destination: ", err)
				return err
			}

			w.logger.Info("Video file copied sucessfully")
		} else {
			w.logger.Warn("Can't copy file with same path as output path")
		}
	}

	if err := w.poolWorker.sqlite.MarkJobAsDone(job, result.checksum); err != nil {
		w.logger.Error("Failed to mark job as done: ", err)
		return err
	}

	w.logger.WithField("checksum", fmt.Sprintf("%016x", result.checksum)).Info("Finished processing job")
	return nil
}

func (w *Worker) handleProcessJobError(job *Job, result *ProcessJobOutput) {
	w.logger.WithFields(StructFields(job)).Error("Error processing job: ", result.err)
	if result.output != "" {
		w.logger.Debug("Process output: ", result.output)
	}

	retries, err := w.poolWorker.sqlite.GetJobRetries(job)
	if err != nil {
		w.logger.WithFields(StructFields(job)).Error("Failed to get retries: ", err)
		return
	}

	if retries >= retryLimit {
		_ = w.failJob(job, result.output, result.err)
		return
	}

	retries++
	if err := w.poolWorker.sqlite.UpdateJobRetries(job, retries); err != nil {
		w.logger.WithFields(StructFields(job)).Error("Failed to update job retries: ", err)
		return
	}

	w.poolWorker.queue.Enqueue(*job)
	w.logger.WithFields(StructFields(job)).Info("Requeue job (back of the queue and retrying)")
}

func (w *Worker) failJob(job *Job, output string, failError error) error {
	w.logger.WithFields(StructFields(job)).Info("Job failed, removing it from queue")
	if err := w.poolWorker.sqlite.FailJob(job, output, failError.Error()); err != nil {
		w.logger.WithFields(StructFields(job)).Error("Failed to fail the job: ", err)
		return err
	}

	return nil
}

func (w *Worker) processJob(job *Job) ProcessJobOutput {
	ctx := w.poolWorker.ctx
	config := w.poolWorker.config
	w.logger.WithFields(StructFields(job)).Info("Processing job")

	for _, p := range []string{job.Path, job.VectorsPath} {
		exist, err := PathExist(p)
		if err != nil {
			return ProcessJobOutput{err: err}
		}
		if !exist {
			return ProcessJobOutput{jobNotFound: true}
		}
	}

	baseOutputPath := path.Dir(job.OutputPath)
	w.logger.WithField("baseOutputPath", baseOutputPath).
		Debug("Creating output folder if it doesn't exist")
	outputExist, err := PathExist(job.OutputPath)
	if err != nil {
		return ProcessJobOutput{err: err}
	}

	useTmpFile := false
	outputPath := job.OutputPath
	if !outputExist {
		if err := os.MkdirAll(baseOutputPath, os.ModePerm); err != nil {
			return ProcessJobOutput{err: err}
		}
	} else {
		useTmpFile, err = ShouldUseTempFile(job, *config.DeleteOutputIfAlreadyExist)
		if err != nil {
			return ProcessJobOutput{err: err}
		}

		if !useTmpFile {
			w.logger.Warn("Output file already exist, skipping")
			return ProcessJobOutput{skip: true, outputFileAlreadyExist: true}
		}
	}

	if useTmpFile {
		outputPath = path.Join(config.ProcessFolder, fmt.Sprintf("worker_%d_%d%s", w.workerInfo.ID, job.ID, path.Ext(job.OutputPath)))
		w.logger.WithField("tmpPath", outputPath).Debug("Using tmp file")
		if err := os.MkdirAll(config.ProcessFolder, os.ModePerm); err != nil {
			return ProcessJobOutput{err: err}
		}
	}

	w.updateStep("Getting video information")
	videoInfo, output, err := GetVideoInfo(ctx, job.Path)
	if err != nil {
		return ProcessJobOutput{err: err, output: output}
	}

	w.logger.WithFields(logrus.Fields{
		"fps":        videoInfo.FrameRate,
		"targetFPS":  config.TargetFPS,
		"frameCount": videoInfo.FrameCount,
	}).Info("Video information")

	if videoInfo.FrameRate >= config.TargetFPS {
		w.logger.Info("Video is already higher or equal to target FPS, skipping")
		return ProcessJobOutput{skip: true}
	}

	targetFrameCount := int64(float64(videoInfo.FrameCount) / videoInfo.FrameRate * config.TargetFPS)
	w.logger.Info("Calculated frame target: ", targetFrameCount)

	w.updateStep("Loading motion vectors")
	store, err := LoadVectorFile(job.VectorsPath)
	if err != nil {
		return ProcessJobOutput{err: err}
	}

	pf, err := ParsePixelFormat(config.Interpolation.PixelFormat)
	if err != nil {
		return ProcessJobOutput{err: err}
	}

	options, err := config.Interpolation.Options(store.Geometry())
	if err != nil {
		return ProcessJobOutput{err: err}
	}

	w.logger.Info("Setup ffmpeg processor")
	vp, err := NewVideoProcessor(videoInfo, config.FFmpegOptions, pf)
	if err != nil {
		return ProcessJobOutput{err: err}
	}

	if err := vp.StartReading(ctx); err != nil {
		return ProcessJobOutput{err: err, output: vp.Output()}
	}

	if err := vp.StartWriting(ctx, outputPath, config.TargetFPS); err != nil {
		_ = vp.Close()
		return ProcessJobOutput{err: err, output: vp.Output()}
	}

	progressChan := make(chan float64)
	progressDone := make(chan struct{})
	go func() {
		w.updateProgress(progressChan)
		close(progressDone)
	}()

	w.updateStep("Interpolating frames")
	checksum, err := runInterpolation(ctx, &interpolationJob{
		logger:      w.logger,
		io:          vp,
		store:       store,
		options:     options,
		pixelFormat: pf,
		width:       videoInfo.Width,
		height:      videoInfo.Height,
		frameCount:  videoInfo.FrameCount,
		targetCount: targetFrameCount,
		progress:    progressChan,
	})
	close(progressChan)
	<-progressDone

	closeErr := vp.Close()
	if err != nil {
		return ProcessJobOutput{err: err, output: vp.Output()}
	}
	if closeErr != nil {
		return ProcessJobOutput{err: closeErr, output: vp.Output()}
	}

	if useTmpFile {
		w.logger.WithField("destPath", job.OutputPath).Debug("Moving tmp file to destination")
		if err := os.Rename(outputPath, job.OutputPath); err != nil {
			// rename fails across devices
			if err := CopyFile(outputPath, job.OutputPath); err != nil {
				return ProcessJobOutput{err: err}
			}
			_ = os.Remove(outputPath)
		}
	}

	return ProcessJobOutput{checksum: checksum}
}

func (w *Worker) updateStep(step string) {
	w.lock.Lock()
	w.workerInfo.Step = step
	w.workerInfo.Progress = 0
	w.lock.Unlock()

	w.sendUpdate()
}

func (w *Worker) updateProgress(progressChan <-chan float64) {
	for progress := range progressChan {
		w.lock.Lock()
		w.workerInfo.Progress = progress
		w.lock.Unlock()

		w.sendUpdate()
	}
}

func (w *Worker) sendUpdate() {
	if w.hub == nil {
		return
	}

	packet := WsWorkerProgress{
		WsBaseMessage: WsBaseMessage{
			Type: "worker_progress",
		},
		WorkerInfo: w.GetInfo(),
	}

	w.hub.BroadcastMessage(packet)
}

func (w *Worker) GetInfo() WorkerInfo {
	w.lock.RLock()
	defer w.lock.RUnlock()

	info := w.workerInfo
	if info.Job != nil {
		job := *info.Job
		info.Job = &job
	}
	return info
}
