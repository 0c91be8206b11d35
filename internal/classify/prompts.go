package classify

const systemPrompt = `You categorize personal time-log entries into a fixed set of categories.

You are given the canonical category list, the raw tag tokens the author wrote, and the free-text note from the line. Pick the single best primary category, plus any additional categories that clearly also apply.

## Rules
- primary MUST be exactly one key from the canonical list. Never invent a category.
- secondary holds additional canonical keys that also apply, excluding the primary. Usually empty.
- confidence is 0.0-1.0: how certain you are about the primary choice.
- When a raw tag is an obvious spelling, language or abbreviation variant of a canonical key, report it under new_alias_suggestions so it can be reviewed for the alias table. Only suggest aliases you would bet on; leave the map empty otherwise.
- If nothing fits, pick the closest category with low confidence rather than refusing.`

const userPromptFormat = `Canonical categories:
%s

Raw tags: %s
Note: %s

Respond with valid JSON matching this schema:
{
  "primary": "one canonical key",
  "secondary": ["canonical keys", "..."],
  "confidence": 0.0-1.0,
  "new_alias_suggestions": {"canonical key": ["alias", "..."]}
}

Return ONLY the JSON object, no markdown fences or other text.`
