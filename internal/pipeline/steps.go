package pipeline

import "knowledge-backend/internal/workflow"

// Step identifiers, in execution order.
const (
	StepAuthenticate      = "authenticate"
	StepUpload            = "upload"
	StepValidate          = "validate"
	StepConvert           = "convert"
	StepExtractHTML       = "extract_html"
	StepDiscoverImages    = "discover_images"
	StepRelocateImages    = "relocate_images"
	StepFinalizeHTML      = "finalize_html"
	StepExtractText       = "extract_text"
	StepGenerateEmbedding = "generate_embedding"
	StepStoreEntry        = "store_entry"
	StepFinalizeJob       = "finalize_job"
)

func stepSpecs() []workflow.StepSpec {
	return []workflow.StepSpec{
		{ID: StepAuthenticate, Name: "Authenticate", Description: "Resolve the acting user"},
		{ID: StepUpload, Name: "Upload PDF", Description: "Store the raw PDF in object storage"},
		{ID: StepValidate, Name: "Validate PDF", Description: "Confirm the file is a readable PDF"},
		{ID: StepConvert, Name: "Convert to HTML", Description: "Submit the PDF to the conversion service"},
		{ID: StepExtractHTML, Name: "Extract HTML", Description: "Retrieve the converted HTML artifact"},
		{ID: StepDiscoverImages, Name: "Discover Images", Description: "Scan the HTML for image references"},
		{ID: StepRelocateImages, Name: "Relocate Images", Description: "Move external and inline images to object storage"},
		{ID: StepFinalizeHTML, Name: "Finalize HTML", Description: "Rewrite image references and persist the HTML"},
		{ID: StepExtractText, Name: "Extract Text", Description: "Strip markup and normalize the text"},
		{ID: StepGenerateEmbedding, Name: "Generate Embedding", Description: "Request an embedding vector for the text"},
		{ID: StepStoreEntry, Name: "Store Knowledge Entry", Description: "Insert the knowledge base row"},
		{ID: StepFinalizeJob, Name: "Finalize Job", Description: "Record completion and timing"},
	}
}
