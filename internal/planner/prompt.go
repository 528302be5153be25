package planner

// exampleQuery and exampleResponse form the single demonstration embedded in
// every planning prompt.
const exampleQuery = `Explain how a lithium-ion battery works, for a general audience.`

const exampleResponse = `{
  "subtasks": [
    {
      "type": "text",
      "prompt": "Write an accessible introduction to lithium-ion batteries: where they are used and why they matter."
    },
    {
      "type": "diagram",
      "prompt": "Draw a labeled cross-section of a lithium-ion cell showing the anode, cathode, separator and electrolyte, with arrows for lithium-ion movement during discharge."
    },
    {
      "type": "text",
      "prompt": "Explain what happens chemically during charging and discharging, referring to the cell diagram above."
    },
    {
      "type": "image",
      "prompt": "A clean, modern illustration of a smartphone, a laptop and an electric car sharing a glowing battery icon, flat vector style."
    },
    {
      "type": "text",
      "prompt": "Summarize the main advantages and limitations of lithium-ion batteries, including safety and lifespan."
    }
  ]
}`

// planningPrompt is filled with the example query, the example response and
// the user's request, in that order.
const planningPrompt = `You are planning a multimodal response made of text sections, images and diagrams.
Break the user's request into an ordered list of subtasks. Each subtask produces exactly one element of the final response.

Subtask types:
- "text": a section of prose. The prompt says what the section must cover.
- "image": a generated picture. The prompt is a self-contained image description.
- "diagram": a TikZ diagram. The prompt describes the structure to draw (nodes, edges, labels, axes).

Guidelines:
- Order the subtasks as they should appear in the response.
- Use images and diagrams only where they genuinely help; a response may be text only.
- Prefer diagrams for structure, processes and data; prefer images for scenes and appearance.
- Each prompt must be self-contained: the generator for a subtask does not see the other subtasks.

Example request:
%s

Example response:
%s

Return ONLY a JSON object with a "subtasks" array in exactly the format above (no other text).

User request:
%s`
