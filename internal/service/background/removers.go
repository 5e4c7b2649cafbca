package background

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/kreativo/ai-gateway/internal/assets"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/provider/removebg"
	"github.com/kreativo/ai-gateway/internal/provider/replicate"
)

// RemoveBGRemover cuts backgrounds through the Remove.bg API. The API
// returns raw PNG bytes, so the result is stored locally and served from
// /static/. The call is synchronous; the job only sees terminal updates.
type RemoveBGRemover struct {
	client *removebg.Client
	assets *assets.Store
}

func NewRemoveBGRemover(client *removebg.Client, store *assets.Store) *RemoveBGRemover {
	return &RemoveBGRemover{client: client, assets: store}
}

func (r *RemoveBGRemover) Name() string { return "removebg" }

func (r *RemoveBGRemover) Configured() bool { return r.client.Configured() }

func (r *RemoveBGRemover) Remove(ctx context.Context, imageURL string, _ bool, _ string) (string, error) {
	data, err := r.client.RemoveBackground(ctx, imageURL)
	if err != nil {
		return "", err
	}
	return r.assets.Save("cutout-"+uuid.NewString()+".png", data)
}

// ReplicateRemover runs the rembg model on Replicate. Predictions are
// asynchronous, so the shared poller drives them to completion and keeps
// the tracked job's progress moving while the model runs.
type ReplicateRemover struct {
	client *replicate.Client
	poller *poll.Poller
}

func NewReplicateRemover(client *replicate.Client, poller *poll.Poller) *ReplicateRemover {
	return &ReplicateRemover{client: client, poller: poller}
}

func (r *ReplicateRemover) Name() string { return "replicate" }

func (r *ReplicateRemover) Configured() bool { return r.client.Configured() }

func (r *ReplicateRemover) Remove(ctx context.Context, imageURL string, edgeRefinement bool, jobID string) (string, error) {
	input := map[string]any{
		"image":         imageURL,
		"alpha_matting": edgeRefinement,
	}
	pred, err := r.client.CreatePrediction(ctx, replicate.ModelRembg, input)
	if err != nil {
		return "", err
	}

	urls, err := r.poller.Poll(ctx, pred.ID, jobID, r.fetch)
	if err != nil {
		if errors.Is(err, poll.ErrCancelled) {
			if cerr := r.client.CancelPrediction(ctx, pred.ID); cerr != nil {
				log.Printf("Cancel of prediction %s failed: %v", pred.ID, cerr)
			}
		}
		return "", err
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("rembg produced no output")
	}
	return urls[0], nil
}

func (r *ReplicateRemover) fetch(ctx context.Context, predictionID string) (poll.Result, error) {
	pred, err := r.client.GetPrediction(ctx, predictionID)
	if err != nil {
		return poll.Result{}, err
	}
	return poll.Result{
		Status: poll.Status(pred.Status),
		Output: pred.OutputURLs(),
		Err:    pred.ErrorMessage(),
	}, nil
}
