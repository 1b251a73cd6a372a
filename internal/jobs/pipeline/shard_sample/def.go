package shard_sample

import (
	"github.com/yungbote/machine-maintenance-backend/internal/config"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/events"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

const JobType = "shard_sample"

type Pipeline struct {
	store   objstore.Store
	spec    *config.Spec
	log     *logger.Logger
	events  events.Publisher
	metrics *observability.Metrics
}

func New(store objstore.Store, spec *config.Spec, baseLog *logger.Logger, pub events.Publisher, metrics *observability.Metrics) *Pipeline {
	if pub == nil {
		pub = events.Noop()
	}
	return &Pipeline{
		store:   store,
		spec:    spec,
		log:     baseLog.With("job", JobType),
		events:  pub,
		metrics: metrics,
	}
}

func (p *Pipeline) Type() string { return JobType }
