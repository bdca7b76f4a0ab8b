package inspect

import (
	"fmt"
	"strings"

	"damage-control/api/internal/catalog"
)

const damageShape = `{
  "damages": [
    {
      "group":     "<one of CONFIG[\"groups\"]>",
      "part":      "<one of CONFIG[\"parts\"]>",
      "type":      "<one of CONFIG[\"types\"]>",
      "side":      "<one of CONFIG[\"sides\"]>",
      "severity":  "<one of CONFIG[\"severities\"]>",
      "coordinates": [
        {
          "projection": "<one of CONFIG[\"projections\"]>",
          "segment":    "<one of CONFIG[\"segments\"]>",
          "photos": [
            { "type":"OVERVIEW_WITH_REGISTRATION","photoId":"","url":"","preDamagePhoto":false },
            { "type":"DAMAGE_AREA",               "photoId":"","url":"","preDamagePhoto":false },
            { "type":"DAMAGE_DETAIL",             "photoId":"","url":"","preDamagePhoto":false }
          ]
        }
      ]
    }
  ]
}`

// BuildPrompt renders the inspector instructions for images given in order.
func BuildPrompt(parts catalog.VehicleParts, imageNames []string) string {
	var list strings.Builder
	for i, n := range imageNames {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "%d) %s", i+1, n)
	}

	var b strings.Builder
	b.WriteString("System: You are an expert car-damage inspector.\n\n")
	b.WriteString("CONFIG = ")
	b.WriteString(parts.JSON())
	b.WriteString("\n\nHere are the images you will receive, in order:\n")
	b.WriteString(list.String())
	b.WriteString("\n\nNow return ONLY this single JSON object, with exactly these keys:\n")
	b.WriteString(damageShape)
	b.WriteString("\nAdd one entry to \"damages\" per unique damage. ")
	b.WriteString("Do NOT output any extra text or markdown, only the raw JSON.")
	return b.String()
}
