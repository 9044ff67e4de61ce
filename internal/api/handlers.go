package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/ingest"
	"github.com/berthelol/reference-images/internal/jobs"
	"github.com/berthelol/reference-images/internal/pipeline"
)

// generateRequest is the body of the three generate routes. Product images
// are data URLs or http(s) URLs.
type generateRequest struct {
	TemplateID         string   `json:"templateId" validate:"required"`
	ProductImages      []string `json:"productImages" validate:"required,min=1,max=4,dive,required"`
	ProductDescription string   `json:"productDescription"`
}

type stepResponse struct {
	Prompt     string          `json:"prompt"`
	FilledJSON json.RawMessage `json:"filled_json"`
	Image      string          `json:"image"`
}

type method1Response struct {
	Method    string `json:"method"`
	RequestID string `json:"requestId,omitempty"`
	stepResponse
}

type method2Response struct {
	Method    string       `json:"method"`
	RequestID string       `json:"requestId,omitempty"`
	Step1     stepResponse `json:"step1"`
	Step2     stepResponse `json:"step2"`
}

// imageStep is a method 3 image step. Prompt is the instruction sent to the
// image model.
type imageStep struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type fillStep struct {
	FilledJSON json.RawMessage `json:"filled_json"`
}

type diffStep struct {
	Instructions []string `json:"instructions"`
}

type method3Response struct {
	Method    string    `json:"method"`
	RequestID string    `json:"requestId,omitempty"`
	Step1     imageStep `json:"step1"`
	Step2     fillStep  `json:"step2"`
	Step3     diffStep  `json:"step3"`
	Step4     imageStep `json:"step4"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "reference-images",
	})
}

// pipelineRequest decodes a generate body and resolves its images.
func (s *Server) pipelineRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	var body generateRequest
	if err := decode(w, r, s.MaxBodyBytes, &body); err != nil {
		return pipeline.Request{}, err
	}
	images, err := s.Loader.LoadAll(r.Context(), body.ProductImages)
	if err != nil {
		return pipeline.Request{}, &requestError{msg: "product images: " + err.Error()}
	}
	return pipeline.Request{
		TemplateID:         body.TemplateID,
		ProductImages:      images,
		ProductDescription: strings.TrimSpace(body.ProductDescription),
	}, nil
}

func (s *Server) handleMethod1(w http.ResponseWriter, r *http.Request) {
	req, err := s.pipelineRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Runner.RunMethod1(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, method1Response{
		Method:       pipeline.Method1,
		RequestID:    middleware.GetReqID(r.Context()),
		stepResponse: toStep(res.Prompt, res.Filled, res.Image),
	})
}

func (s *Server) handleMethod2(w http.ResponseWriter, r *http.Request) {
	req, err := s.pipelineRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Runner.RunMethod2(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, method2Response{
		Method:    pipeline.Method2,
		RequestID: middleware.GetReqID(r.Context()),
		Step1:     toStep(res.Step1.Prompt, res.Step1.Filled, res.Step1.Image),
		Step2:     toStep(res.Step2.Prompt, res.Step2.Filled, res.Step2.Image),
	})
}

func (s *Server) handleMethod3(w http.ResponseWriter, r *http.Request) {
	req, err := s.pipelineRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Runner.RunMethod3(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	instructions := res.Step3Instructions
	if instructions == nil {
		instructions = []string{}
	}
	respondJSON(w, http.StatusOK, method3Response{
		Method:    pipeline.Method3,
		RequestID: middleware.GetReqID(r.Context()),
		Step1:     imageStep{Prompt: res.Step1Prompt, Image: res.Step1Image.DataURL()},
		Step2:     fillStep{FilledJSON: descriptorJSON(res.Step2Filled)},
		Step3:     diffStep{Instructions: instructions},
		Step4:     imageStep{Prompt: res.Step4Prompt, Image: res.Step4Image.DataURL()},
	})
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.Templates.GetReferenceDescriptor(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templateId": id,
		"descriptor": descriptorJSON(d),
	})
}

// ingestRequest is the body of the ingest route. Image is a data URL, an
// http(s) URL or an s3:// reference.
type ingestRequest struct {
	Image  string `json:"image" validate:"required"`
	Source string `json:"source"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body ingestRequest
	if err := decode(w, r, s.MaxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}

	if s.Dispatcher != nil && !strings.HasPrefix(body.Image, "data:") {
		jobID := jobs.NewID(jobs.PrefixIngest)
		err := s.Dispatcher.Dispatch(r.Context(), ingest.WorkerEvent{
			Type:       ingest.WorkerEventIngest,
			JobID:      jobID,
			TemplateID: id,
			ImageRef:   body.Image,
			Source:     body.Source,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{
			"jobId":      jobID,
			"templateId": id,
			"status":     "queued",
		})
		return
	}

	img, err := s.Loader.Load(r.Context(), body.Image)
	if err != nil {
		writeError(w, r, &requestError{msg: "image: " + err.Error()})
		return
	}
	res, err := s.Ingester.Ingest(r.Context(), ingest.Input{ID: id, Image: img, Source: body.Source})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// productRequest is the body of the product helper routes.
type productRequest struct {
	ProductImages      []string `json:"productImages" validate:"required,min=1,max=4,dive,required"`
	ProductDescription string   `json:"productDescription"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var body productRequest
	if err := decode(w, r, s.MaxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	images, err := s.Loader.LoadAll(r.Context(), body.ProductImages)
	if err != nil {
		writeError(w, r, &requestError{msg: "product images: " + err.Error()})
		return
	}
	desc, err := s.Runner.Describer.Describe(r.Context(), images...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"description": desc})
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body productRequest
	if err := decode(w, r, s.MaxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	images, err := s.Loader.LoadAll(r.Context(), body.ProductImages)
	if err != nil {
		writeError(w, r, &requestError{msg: "product images: " + err.Error()})
		return
	}
	desc := strings.TrimSpace(body.ProductDescription)
	if desc == "" {
		if desc, err = s.Runner.Describer.Describe(r.Context(), images...); err != nil {
			writeError(w, r, err)
			return
		}
	}
	img, err := s.Runner.Compositor.CleanProduct(r.Context(), desc, images...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int("bytes", len(img.Data)).Dur("duration", time.Since(start)).Msg("Product image cleaned")
	respondJSON(w, http.StatusOK, map[string]string{
		"productDescription": desc,
		"image":              img.DataURL(),
	})
}

func toStep(prompt string, filled *descriptor.Descriptor, img filehandler.Image) stepResponse {
	return stepResponse{Prompt: prompt, FilledJSON: descriptorJSON(filled), Image: img.DataURL()}
}

// descriptorJSON renders d for a response body; nil renders as null.
func descriptorJSON(d *descriptor.Descriptor) json.RawMessage {
	if d == nil {
		return json.RawMessage("null")
	}
	b, err := d.Marshal()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal descriptor")
		return json.RawMessage("null")
	}
	return b
}
