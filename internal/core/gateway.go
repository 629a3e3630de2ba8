package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RegisteredPredictor binds a predictor to its static ensemble weight and
// per-invocation timeout.
type RegisteredPredictor struct {
	Predictor Predictor
	Weight    float64
	Timeout   time.Duration
}

// Gateway invokes registered predictors concurrently, normalizing every
// failure into a PredictorError. A predictor's failure never aborts its
// siblings, and the gateway never retries within a request.
type Gateway struct {
	registered []RegisteredPredictor
	logger     *zap.Logger
}

// NewGateway creates a gateway over the registered predictor set.
func NewGateway(registered []RegisteredPredictor, logger *zap.Logger) *Gateway {
	return &Gateway{
		registered: registered,
		logger:     logger,
	}
}

// Registered returns the full predictor registry.
func (g *Gateway) Registered() []RegisteredPredictor {
	return g.registered
}

// Weights returns the configured weight per predictor ID.
func (g *Gateway) Weights() map[string]float64 {
	weights := make(map[string]float64, len(g.registered))
	for _, r := range g.registered {
		weights[r.Predictor.ID()] = r.Weight
	}
	return weights
}

// Invoke runs a single predictor under its timeout and validates the
// output shape before it can reach the aggregator.
func (g *Gateway) Invoke(ctx context.Context, reg RegisteredPredictor, sample *ContentSample, features FeatureSet) (*PredictorOutput, error) {
	id := reg.Predictor.ID()

	invokeCtx := ctx
	if reg.Timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, reg.Timeout)
		defer cancel()
	}

	out, err := reg.Predictor.Predict(invokeCtx, sample, features)
	if err != nil {
		kind := PredictorUnavailable
		if errors.Is(err, context.DeadlineExceeded) || invokeCtx.Err() != nil {
			kind = PredictorTimeout
		}
		return nil, &PredictorError{PredictorID: id, Kind: kind, Err: err}
	}

	if err := validateOutput(id, out); err != nil {
		return nil, &PredictorError{PredictorID: id, Kind: PredictorInvalidResponse, Err: err}
	}

	return out, nil
}

// FanOut invokes every registered predictor concurrently and returns the
// outputs that arrived before ctx expired, in no particular order.
// Invocations still outstanding at the deadline are abandoned and their
// eventual results discarded. Predictors named in exclude are skipped;
// the service uses this to avoid re-running the rule engine after the
// fast pre-check.
func (g *Gateway) FanOut(ctx context.Context, sample *ContentSample, features FeatureSet, exclude ...string) []*PredictorOutput {
	skip := map[string]struct{}{}
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var active []RegisteredPredictor
	for _, reg := range g.registered {
		if _, ok := skip[reg.Predictor.ID()]; ok {
			continue
		}
		active = append(active, reg)
	}
	if len(active) == 0 {
		return nil
	}

	results := make(chan *PredictorOutput, len(active))

	var group errgroup.Group
	for _, reg := range active {
		group.Go(func() error {
			out, err := g.Invoke(ctx, reg, sample, features)
			if err != nil {
				var perr *PredictorError
				if errors.As(err, &perr) {
					g.logger.Warn("Predictor failed",
						zap.String("predictor", perr.PredictorID),
						zap.String("kind", string(perr.Kind)),
						zap.Error(perr.Err))
				}
				return nil
			}
			results <- out
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		group.Wait() //nolint:errcheck // workers never return errors
		close(done)
	}()

	var outputs []*PredictorOutput
	for {
		select {
		case out := <-results:
			outputs = append(outputs, out)
		case <-done:
			// Drain anything that raced with the close.
			for {
				select {
				case out := <-results:
					outputs = append(outputs, out)
				default:
					return outputs
				}
			}
		case <-ctx.Done():
			g.logger.Warn("Request deadline reached, abandoning outstanding predictors",
				zap.Int("collected", len(outputs)),
				zap.Int("invoked", len(active)))
			return outputs
		}
	}
}

func validateOutput(id string, out *PredictorOutput) error {
	if out == nil {
		return errors.New("nil output")
	}
	if out.PredictorID == "" {
		out.PredictorID = id
	}
	switch out.Level {
	case RiskSafe, RiskWarning, RiskDanger:
	default:
		return errors.New("unknown verdict level: " + string(out.Level))
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return errors.New("confidence out of range")
	}
	for name, score := range out.FeatureScores {
		if score < 0 || score > 1 {
			return errors.New("feature score out of range: " + name)
		}
	}
	return nil
}
