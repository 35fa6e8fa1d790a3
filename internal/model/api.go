package model

import (
	"github.com/chesszero/chesszero/internal/generics"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Prediction is what comes back through a serving pipe: the move-policy
// distribution and the position value.
type Prediction struct {
	Policy []float32
	Value  float32
}

// predictRequest travels from a pipe to the serving goroutine; done is
// closed once the prediction (or error) is filled in.
type predictRequest struct {
	planes []float32
	done   chan struct{}

	prediction Prediction
	err        error
}

// Pipe is one independent bidirectional channel to the model's serving
// endpoint. Pipes are safe for concurrent use, but each Predict call blocks
// until its batch has been evaluated.
type Pipe struct {
	requests chan<- *predictRequest
}

// Predict submits one encoded position and waits for its prediction.
func (p *Pipe) Predict(planes []float32) (Prediction, error) {
	req := &predictRequest{planes: planes, done: make(chan struct{})}
	p.requests <- req
	<-req.done
	return req.prediction, req.err
}

// servingAPI batches concurrently pending requests from all pipes and runs
// them through the model in single inference calls.
type servingAPI struct {
	model     *ChessModel
	batchSize int
	requests  chan *predictRequest
	quit      chan struct{}
}

// GetPipes lazily starts the serving endpoint bound to this model and
// returns num independent pipes to it. All pipes share one endpoint: their
// requests are batched together.
//
// The model must stay built while pipes are in use; Build/Load swap the
// graph the endpoint serves from.
func (m *ChessModel) GetPipes(num int) []*Pipe {
	m.apiOnce.Do(func() {
		m.api = &servingAPI{
			model:     m,
			batchSize: m.config.Model.BatchSize,
			requests:  make(chan *predictRequest, m.config.Model.BatchSize),
			quit:      make(chan struct{}),
		}
		go m.api.serve()
	})
	pipes := make([]*Pipe, num)
	for ii := range pipes {
		pipes[ii] = &Pipe{requests: m.api.requests}
	}
	return pipes
}

// serve is the endpoint goroutine: it blocks for the first pending request,
// greedily drains whatever else is already queued up to the batch size, and
// answers the whole batch from one BatchPredict call.
func (api *servingAPI) serve() {
	for {
		var first *predictRequest
		select {
		case <-api.quit:
			return
		case first = <-api.requests:
		}
		batch := []*predictRequest{first}
	collect:
		for len(batch) < api.batchSize {
			select {
			case req := <-api.requests:
				batch = append(batch, req)
			default:
				break collect
			}
		}
		api.answer(batch)
	}
}

func (api *servingAPI) answer(batch []*predictRequest) {
	planes := generics.SliceMap(batch, func(req *predictRequest) []float32 {
		return req.planes
	})
	policies, values, err := api.model.BatchPredict(planes)
	if err != nil {
		klog.Warningf("serving endpoint failed to predict batch of %d: %v", len(batch), err)
		for _, req := range batch {
			req.err = errors.WithMessage(err, "prediction failed")
			close(req.done)
		}
		return
	}
	for ii, req := range batch {
		req.prediction = Prediction{Policy: policies[ii], Value: values[ii]}
		close(req.done)
	}
}

// stop terminates the serving goroutine. Pending Predict calls that were not
// yet picked up will block forever; stop is meant for teardown after all
// pipe users are done.
func (api *servingAPI) stop() {
	close(api.quit)
}
