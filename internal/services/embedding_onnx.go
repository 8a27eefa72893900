package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type ONNXOptions struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
	Dimensions    int
	SeqLen        int
	Pooling       string // "cls" or "mean"
	TokenTypeIDs  bool   // model takes a token_type_ids input (BERT-style)
}

// ONNXEmbedder runs a sentence-embedding model in process. One inference runs
// at a time since the session reuses its input and output tensors.
type ONNXEmbedder struct {
	mu            sync.Mutex
	opts          ONNXOptions
	session       *ort.AdvancedSession
	tokenizer     *Tokenizer
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	once          sync.Once
}

func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	ort.SetSharedLibraryPath(opts.LibraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init onnx: %w", err)
	}

	seq := int64(opts.SeqLen)
	dim := int64(opts.Dimensions)

	inputIDs, err := ort.NewTensor(ort.NewShape(1, seq), make([]int64, seq))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	attentionMask, err := ort.NewTensor(ort.NewShape(1, seq), make([]int64, seq))
	if err != nil {
		return nil, fmt.Errorf("create attention tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, seq, dim), make([]float32, seq*dim))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	inputs := []ort.ArbitraryTensor{inputIDs, attentionMask}

	var tokenTypeIDs *ort.Tensor[int64]
	if opts.TokenTypeIDs {
		tokenTypeIDs, err = ort.NewTensor(ort.NewShape(1, seq), make([]int64, seq))
		if err != nil {
			return nil, fmt.Errorf("create token type tensor: %w", err)
		}
		inputNames = append(inputNames, "token_type_ids")
		inputs = append(inputs, tokenTypeIDs)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		inputNames,
		[]string{"last_hidden_state"},
		inputs,
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	tokenizer, err := NewTokenizer(opts.TokenizerPath)
	if err != nil {
		return nil, err
	}

	return &ONNXEmbedder{
		opts:          opts,
		session:       session,
		tokenizer:     tokenizer,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		tokenTypeIDs:  tokenTypeIDs,
		output:        output,
	}, nil
}

func (e *ONNXEmbedder) Model() string {
	return e.opts.ModelPath
}

func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask := e.tokenizer.Encode(text, e.opts.SeqLen)
	copy(e.inputIDs.GetData(), inputIDs)
	copy(e.attentionMask.GetData(), attentionMask)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	var embedding []float32
	if e.opts.Pooling == "mean" {
		embedding = meanPooling(e.output.GetData(), attentionMask, e.opts.SeqLen, e.opts.Dimensions)
	} else {
		embedding = clsPooling(e.output.GetData(), e.opts.Dimensions)
	}
	normalize(embedding)

	return embedding, nil
}

func clsPooling(output []float32, dim int) []float32 {
	embedding := make([]float32, dim)
	copy(embedding, output[:dim])
	return embedding
}

func meanPooling(output []float32, mask []int64, seqLen, dim int) []float32 {
	embedding := make([]float32, dim)
	count := float32(0)

	for i := 0; i < seqLen; i++ {
		if mask[i] == 0 {
			continue
		}
		count++
		for j := 0; j < dim; j++ {
			embedding[j] += output[i*dim+j]
		}
	}
	if count == 0 {
		return embedding
	}

	for j := range embedding {
		embedding[j] /= count
	}

	return embedding
}

func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

func (e *ONNXEmbedder) Close() {
	e.once.Do(func() {
		e.session.Destroy()
		e.inputIDs.Destroy()
		e.attentionMask.Destroy()
		if e.tokenTypeIDs != nil {
			e.tokenTypeIDs.Destroy()
		}
		e.output.Destroy()
		e.tokenizer.Close()
		ort.DestroyEnvironment()
	})
}
