package llm

// analysisPrompt is sent alongside the image on every request.
const analysisPrompt = `Analyze the provided chest X-ray image as an expert radiologist.
Provide a list of potential diagnoses with probabilities, a detailed explanation of your findings, and identify the most critical area of attention with a bounding box.
The sum of probabilities in the diagnoses list should be close to 1.0.
If the image is not a medical X-ray, respond with an appropriate error in the explanation field.`

// AnalysisSchema constrains the model's reply to the models.AnalysisResult shape.
func AnalysisSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]Schema{
			"diagnoses": {
				Type:        TypeArray,
				Description: "A list of possible medical conditions with their corresponding probabilities.",
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]Schema{
						"condition": {
							Type:        TypeString,
							Description: "The name of the medical condition (e.g., 'Pneumonia', 'Normal', 'Effusion').",
						},
						"probability": {
							Type:        TypeNumber,
							Description: "The probability of this condition, from 0.0 to 1.0.",
						},
					},
					Required: []string{"condition", "probability"},
				},
			},
			"explanation": {
				Type:        TypeString,
				Description: "A detailed but concise explanation of the findings, written for a medical professional.",
			},
			"attentionArea": {
				Type:        TypeObject,
				Description: "The primary area of interest or concern in the image.",
				Properties: map[string]Schema{
					"x": {
						Type:        TypeNumber,
						Description: "The x-coordinate of the top-left corner of the bounding box, as a percentage of image width.",
					},
					"y": {
						Type:        TypeNumber,
						Description: "The y-coordinate of the top-left corner of the bounding box, as a percentage of image height.",
					},
					"width": {
						Type:        TypeNumber,
						Description: "The width of the bounding box, as a percentage of image width.",
					},
					"height": {
						Type:        TypeNumber,
						Description: "The height of the bounding box, as a percentage of image height.",
					},
					"description": {
						Type:        TypeString,
						Description: "A brief description of what is significant about this area.",
					},
				},
				Required: []string{"x", "y", "width", "height", "description"},
			},
		},
		Required: []string{"diagnoses", "explanation", "attentionArea"},
	}
}
