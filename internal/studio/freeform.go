package studio

import (
	"regexp"

	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/region"
)

// Intent is an edit kind recognized in a freeform instruction.
type Intent string

const (
	IntentClothing        Intent = "clothing"
	IntentHair            Intent = "hair"
	IntentBackground      Intent = "background"
	IntentAccessoryAdd    Intent = "accessory_add"
	IntentAccessoryRemove Intent = "accessory_remove"
	IntentLighting        Intent = "lighting"
)

// ReasonNoIntent is returned for safe instructions with nothing to edit.
const ReasonNoIntent = "instruction does not describe a supported edit"

// IntentAnalysis is the outcome of AnalyzeInstruction.
type IntentAnalysis struct {
	Instruction      string                `json:"instruction"`
	IsSafe           bool                  `json:"isSafe"`
	BlockedCategory  string                `json:"blockedCategory,omitempty"`
	RejectionReason  string                `json:"rejectionReason,omitempty"`
	Intents          []Intent              `json:"intents,omitempty"`
	Regions          []region.Region       `json:"regions,omitempty"`
	ExtraConstraints []constraint.Negative `json:"extraConstraints,omitempty"`
}

// Blocked reports whether the instruction must not reach generation.
func (a IntentAnalysis) Blocked() bool {
	return !a.IsSafe || len(a.Regions) == 0
}

// Reason is the user-facing reason when Blocked.
func (a IntentAnalysis) Reason() string {
	if a.RejectionReason != "" {
		return a.RejectionReason
	}
	if len(a.Regions) == 0 {
		return ReasonNoIntent
	}
	return ""
}

type prohibited struct {
	category string
	reason   string
	patterns []*regexp.Regexp
}

const (
	faceParts    = `(?:face|jaw|jawline|chin|cheeks?|cheekbones?|nose|eyes?|lips|forehead|eyebrows?)`
	bodyParts    = `(?:body|waist|hips|arms|shoulders|chest|belly|stomach|legs|thighs)`
	accessories  = `(?:glasses|sunglasses|spectacles|hat|cap|beanie|fedora|headband|earrings?|necklace|pendant|chain|watch|bracelet|scarf)`
	upToTwoWords = `(?:\s+[\w']+){0,2}\s+`
)

// Prohibited categories are checked in order; the first match wins.
// Biometric marks come first so "change my eye color" is not reported as a
// face reshape.
var prohibitedIntents = []prohibited{
	{
		category: "biometric_alteration",
		reason:   "altering identifying marks such as scars, birthmarks or eye color is not supported",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:remove|erase|hide|add|change)\b` + upToTwoWords + `(?:scars?|birthmarks?|moles?|freckles)\b`),
			regexp.MustCompile(`(?i)\b(?:eye|iris)\s+colou?r\b`),
			regexp.MustCompile(`(?i)\bcolou?red contacts\b`),
		},
	},
	{
		category: "face_reshape",
		reason:   "reshaping the face or facial features is not supported",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:reshape|slim|narrow|widen|sharpen|shrink|enlarge|contour|change|alter|modify|fix)\b` + upToTwoWords + faceParts + `\b`),
			regexp.MustCompile(`(?i)\b(?:smaller|bigger|larger|thinner|fuller|slimmer|sharper|narrower|wider)\s+` + faceParts + `\b`),
			regexp.MustCompile(`(?i)\bmake\b` + upToTwoWords + faceParts + `(?:\s+[\w']+){0,2}?\s+(?:smaller|bigger|larger|thinner|fuller|slimmer|sharper|narrower|wider)\b`),
			regexp.MustCompile(`(?i)\b(?:nose job|face ?lift|v-?line)\b`),
		},
	},
	{
		category: "ethnicity_change",
		reason:   "changing ethnicity is not supported",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:make|look|appear)\b(?:\s+(?:me|him|her|them|more|less))*\s+(?:asian|african|caucasian|european|latino|latina|hispanic|indian|arab|middle eastern)\b`),
			regexp.MustCompile(`(?i)\b(?:change|alter|swap|different)\b` + upToTwoWords + `(?:ethnicity|race)\b`),
			regexp.MustCompile(`(?i)\b(?:ethnicity|racial features)\b`),
		},
	},
	{
		category: "age_change",
		reason:   "changing apparent age is not supported",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:younger|older|de-?age|anti-?aging|age progression)\b`),
			regexp.MustCompile(`(?i)\b(?:remove|erase|smooth|hide)\b` + upToTwoWords + `wrinkles\b`),
		},
	},
	{
		category: "body_reshape",
		reason:   "reshaping the body is not supported",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:slim|slimmer|thinner|skinnier|fatter|bigger|smaller|wider|broader|narrower|taller|shorter)\b` + upToTwoWords + bodyParts + `\b`),
			regexp.MustCompile(`(?i)\b(?:make|reshape)\b` + upToTwoWords + bodyParts + `(?:\s+[\w']+){0,2}?\s+(?:slimmer|thinner|wider|bigger|smaller|broader|narrower)\b`),
			regexp.MustCompile(`(?i)\b(?:lose|gain)\s+weight\b`),
		},
	},
	{
		category: "skin_color_change",
		reason:   "changing skin color is not supported",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:lighter|darker|whiter|fairer|tanned|lighten|darken|whiten|bleach|tan)\b` + upToTwoWords + `(?:skin|complexion)\b`),
			regexp.MustCompile(`(?i)\b(?:lighter|darker|whiter|fairer|tanned)\s+(?:skin|complexion)\b`),
			regexp.MustCompile(`(?i)\b(?:skin|complexion)(?:\s+(?:tone|color|colour))?\s+(?:lighter|darker|whiter|fairer)\b`),
			regexp.MustCompile(`(?i)\b(?:change|alter)\b` + upToTwoWords + `(?:skin|complexion|skin tone)\b`),
		},
	},
}

var validIntents = []struct {
	intent  Intent
	pattern *regexp.Regexp
}{
	{IntentClothing, regexp.MustCompile(`(?i)\b(?:shirt|t-?shirt|blouse|suit|jacket|blazer|coat|dress|sweater|hoodie|outfit|clothes|clothing|tie|bow ?tie|collar|lapels?|uniform|vest|cardigan|turtleneck|polo|attire|tuxedo)\b`)},
	{IntentHair, regexp.MustCompile(`(?i)\b(?:hair|haircut|hairstyle|bangs|fringe|ponytail|bun|braids?|curls|curly|buzz ?cut|undercut|bob|highlights|blonde|brunette)\b`)},
	{IntentBackground, regexp.MustCompile(`(?i)\b(?:background|backdrop|scenery|setting|surroundings|behind (?:me|him|her|them))\b`)},
	{IntentAccessoryAdd, regexp.MustCompile(`(?i)\b(?:add|put on|wear|wearing|give (?:me|him|her|them))\b(?:\s+[\w']+){0,3}?\s+` + accessories + `\b`)},
	{IntentAccessoryRemove, regexp.MustCompile(`(?i)\b(?:remove|take off|without|get rid of)\b(?:\s+[\w']+){0,3}?\s+` + accessories + `\b`)},
	{IntentLighting, regexp.MustCompile(`(?i)\b(?:lighting|relight|brighter|brighten|golden hour|soft light|studio light|shadows|exposure)\b`)},
}

var accessoryRegions = []region.Region{region.Headwear, region.Eyewear, region.Earrings, region.Necklace, region.Wristwear}

var intentRegions = map[Intent][]region.Region{
	IntentClothing:        {region.Clothing, region.Collar, region.Lapel, region.TieArea, region.Torso, region.Shoulders, region.Sleeves},
	IntentHair:            {region.Hair},
	IntentBackground:      {region.Background},
	IntentAccessoryAdd:    accessoryRegions,
	IntentAccessoryRemove: accessoryRegions,
	IntentLighting:        {region.Background},
}

var intentConstraints = map[Intent]constraint.Negative{
	IntentClothing:        {ID: "garment_neck_blend", Description: "visible seam between garment and neck", Weight: 0.8},
	IntentHair:            {ID: "preserve_hairline", Description: "changed hairline", Weight: 0.9},
	IntentBackground:      {ID: "subject_edge_bleed", Description: "background bleeding into the subject", Weight: 0.85},
	IntentAccessoryAdd:    {ID: "accessory_face_overlap", Description: "accessory covering the eyes or face", Weight: 0.85},
	IntentAccessoryRemove: {ID: "accessory_face_overlap", Description: "accessory covering the eyes or face", Weight: 0.85},
	IntentLighting:        {ID: "face_relighting", Description: "relit or recolored face", Weight: 0.9},
}

// AnalyzeInstruction screens a freeform instruction and infers its edit
// regions. The safety screen runs first; a prohibited match returns
// immediately without region inference.
func AnalyzeInstruction(instruction string) IntentAnalysis {
	a := IntentAnalysis{Instruction: instruction}

	for _, p := range prohibitedIntents {
		for _, re := range p.patterns {
			if re.MatchString(instruction) {
				a.BlockedCategory = p.category
				a.RejectionReason = p.reason
				return a
			}
		}
	}
	a.IsSafe = true

	regions := region.NewSet()
	for _, v := range validIntents {
		if !v.pattern.MatchString(instruction) {
			continue
		}
		a.Intents = append(a.Intents, v.intent)
		regions.Add(intentRegions[v.intent]...)
		a.ExtraConstraints = constraint.Merge(a.ExtraConstraints, []constraint.Negative{intentConstraints[v.intent]})
	}
	// Identity-locked regions cannot be inferred, but be explicit.
	a.Regions = regions.Subtract(region.IdentityLocked()).Sorted()
	return a
}

// InferredPreserve is IdentityLocked ∪ (All − inferred).
func InferredPreserve(inferred []region.Region) region.Set {
	return region.IdentityLocked().Union(region.NewSet(region.All()...).Subtract(region.NewSet(inferred...)))
}
