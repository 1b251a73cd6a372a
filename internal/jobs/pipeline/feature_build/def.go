package feature_build

import (
	"github.com/yungbote/machine-maintenance-backend/internal/config"
	"github.com/yungbote/machine-maintenance-backend/internal/data/source"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/sequence"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

const JobType = "feature_build"

type Pipeline struct {
	src     source.Source
	store   objstore.Store
	spec    *config.Spec
	log     *logger.Logger
	metrics *observability.Metrics
	tracker sequence.Tracker
}

func New(src source.Source, store objstore.Store, spec *config.Spec, baseLog *logger.Logger, metrics *observability.Metrics, tracker sequence.Tracker) *Pipeline {
	return &Pipeline{
		src:     src,
		store:   store,
		spec:    spec,
		log:     baseLog.With("job", JobType),
		metrics: metrics,
		tracker: tracker,
	}
}

func (p *Pipeline) Type() string { return JobType }
