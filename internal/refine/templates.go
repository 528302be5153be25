package refine

// Each template takes, in order: the original user query, the draft subtask
// prompt, and a context block (possibly empty).

const textTemplate = `As an expert prompt engineer, improve the following text generation prompt to produce better results. Your prompt will be used to generate a text section for an individual text element as part of a larger response to the user prompt shown below. You can think of this as a section in a report.

Original user query: %s

Current text prompt to refine: %s

%sImprove the prompt by:
1. Making it more specific and detailed
2. Adding necessary context to maintain flow with surrounding elements
3. Specifying desired tone, style, and length
4. Highlighting key points that should be addressed
5. Including any necessary instructions about how to structure the text

Remember, this text is one element of a larger response. The task is only to improve the text generation prompt, NOT write a prompt to answer the user directly.
Provide ONLY the enhanced prompt text with no additional explanation or commentary.
Ensure the enhanced prompt maintains the original intent but adds precision and clarity.
`

const imageTemplate = `As an expert prompt engineer for image generation, improve the following image prompt to produce better results. Your prompt will be used to generate an image for an individual figure in a multimodal response to the user prompt shown below. You can think of this as a figure within a journal article.

Original user query: %s

Current image prompt to refine: %s

%sImprove the prompt by:
1. Adding vivid visual details and specificity
2. Specifying composition, perspective, and style
3. Including art direction (lighting, colors, mood)
4. Clarifying what elements should be emphasized
5. Ensuring the image will complement surrounding text elements

Remember, this image is one element of a larger response. The task is only to improve the image prompt, NOT write a prompt to answer the user directly.
Return ONLY the improved image generation prompt without explanations or metadata.`

const diagramTemplate = `As an expert prompt engineer for technical diagrams, improve the following diagram prompt to produce better results. Your prompt will be used to generate TikZ code for an individual diagram in a multimodal response to the user prompt shown below. You can think of this as a figure within a textbook.

Original user query: %s

Current diagram prompt to refine: %s

%sImprove the prompt by:
1. Naming every node, edge and label the diagram must contain
2. Specifying the layout (direction, grouping, relative positions)
3. Stating which TikZ constructs and libraries to use, keeping them standard
4. Keeping the diagram readable at a single-column width
5. Ensuring the diagram complements surrounding text elements

Remember, this diagram is one element of a larger response. The task is only to improve the diagram prompt, NOT write a prompt to answer the user directly.
The generator must return a single tikzpicture environment.
Return ONLY the improved diagram prompt without explanations or metadata.`
