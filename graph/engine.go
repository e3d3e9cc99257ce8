package graph

import (
	apperrors "github.com/pixelforge/imgcore/errors"
)

// Engine runs a Description's chains in order against an EngineContext.
type Engine struct{}

// NewEngine returns an Engine. It holds no state of its own; all mutable
// state lives in the EngineContext passed to Run.
func NewEngine() *Engine { return &Engine{} }

// Run decodes, transforms, and encodes each chain in order. If poll
// returns true at a chain boundary, the run stops immediately: no further
// frames are decoded, and outputs already written stay as they are.
func (e *Engine) Run(ctx EngineContext, desc Description, poll CancelPoll) (Result, error) {
	var res Result

	for _, chain := range desc.Chains {
		if poll != nil && poll() {
			res.Canceled = true
			return res, apperrors.New(apperrors.KindCancelled, "graph.run", apperrors.ErrCancelled)
		}

		key, err := ctx.DecodeFrame(chain.InputIoID)
		if err != nil {
			return res, err
		}
		res.Decoded = append(res.Decoded, chain.InputIoID)

		for _, op := range chain.Ops {
			key, err = applyOp(ctx, key, op)
			if err != nil {
				return res, err
			}
		}

		if chain.HasOutput {
			if err := ctx.EncodeFrame(chain.OutputIoID, key); err != nil {
				return res, err
			}
			res.Encoded = append(res.Encoded, chain.OutputIoID)
		}
	}

	return res, nil
}
