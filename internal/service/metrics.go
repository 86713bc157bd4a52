package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cutout_sweep_runs_total",
		Help: "Number of cleanup sweeps run",
	})

	sweepImagesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cutout_sweep_images_deleted_total",
		Help: "Number of expired images deleted by cleanup sweeps",
	})

	sweepStorageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cutout_sweep_storage_errors_total",
		Help: "Number of object deletions that failed during cleanup sweeps",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cutout_sweep_duration_seconds",
		Help:    "Duration of cleanup sweeps in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	imagesSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutout_images_saved_total",
		Help: "Number of image records created",
	}, []string{"claimed"})

	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutout_identity_merges_total",
		Help: "Number of identity merges by result",
	}, []string{"result"})

	imagesReassignedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cutout_images_reassigned_total",
		Help: "Number of images moved from anonymous to authenticated users",
	})
)
