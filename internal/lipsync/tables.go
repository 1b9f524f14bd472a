package lipsync

// Viseme names. These follow the 15 Oculus viseme classes.
const (
	VisemeSil = "sil"
	VisemePP  = "PP" // p, b, m
	VisemeFF  = "FF" // f, v
	VisemeTH  = "TH"
	VisemeDD  = "DD" // t, d
	VisemeKK  = "kk" // k, g
	VisemeCH  = "CH" // ch, j, sh
	VisemeSS  = "SS" // s, z
	VisemeNN  = "nn" // n, l
	VisemeRR  = "RR"
	VisemeAA  = "aa"
	VisemeE   = "E"
	VisemeI   = "I"
	VisemeO   = "O"
	VisemeU   = "U"
)

// Phoneme tokens produced by the first-letter heuristic.
const (
	PhonemeSilence   = "sil"
	PhonemeOpenVowel = "AA"
	PhonemeClosed    = "M"
)

// Blendshape names carried in LipSyncData.BlendshapeWeights.
const (
	JawOpen      = "jawOpen"
	MouthClose   = "mouthClose"
	MouthPucker  = "mouthPucker"
	MouthFunnel  = "mouthFunnel"
	MouthStretch = "mouthStretch"
	MouthWide    = "mouthWide"
	MouthSmile   = "mouthSmile"
	TongueOut    = "tongueOut"
)

// BlendshapeNames lists every weight key in a stable order.
var BlendshapeNames = []string{
	JawOpen, MouthClose, MouthPucker, MouthFunnel,
	MouthStretch, MouthWide, MouthSmile, TongueOut,
}

// phonemeToViseme maps ARPAbet phonemes (stress markers stripped) to visemes.
var phonemeToViseme = map[string]string{
	"sil": VisemeSil,

	"P": VisemePP, "B": VisemePP, "M": VisemePP,
	"F": VisemeFF, "V": VisemeFF,
	"TH": VisemeTH, "DH": VisemeTH,
	"T": VisemeDD, "D": VisemeDD,
	"K": VisemeKK, "G": VisemeKK, "NG": VisemeKK,
	"CH": VisemeCH, "JH": VisemeCH, "SH": VisemeCH, "ZH": VisemeCH,
	"S": VisemeSS, "Z": VisemeSS,
	"N": VisemeNN, "L": VisemeNN,
	"R": VisemeRR, "ER": VisemeRR,

	"AA": VisemeAA, "AE": VisemeAA, "AH": VisemeAA, "AY": VisemeAA, "HH": VisemeAA,
	"EH": VisemeE, "EY": VisemeE,
	"IH": VisemeI, "IY": VisemeI, "Y": VisemeI,
	"AO": VisemeO, "OW": VisemeO, "OY": VisemeO, "AW": VisemeO,
	"UH": VisemeU, "UW": VisemeU, "W": VisemeU,
}

// visemeWeights holds the blendshape pose for each viseme. Missing keys
// are zero; sil is the rest pose.
var visemeWeights = map[string]map[string]float64{
	VisemeSil: {},
	VisemePP:  {MouthClose: 0.8, MouthPucker: 0.3},
	VisemeFF:  {MouthFunnel: 0.5, MouthClose: 0.2},
	VisemeTH:  {MouthFunnel: 0.3, TongueOut: 0.4},
	VisemeDD:  {JawOpen: 0.2, MouthWide: 0.2},
	VisemeKK:  {JawOpen: 0.25, MouthStretch: 0.2},
	VisemeCH:  {MouthFunnel: 0.4, MouthPucker: 0.3},
	VisemeSS:  {MouthStretch: 0.3, MouthWide: 0.2},
	VisemeNN:  {JawOpen: 0.15, MouthClose: 0.3},
	VisemeRR:  {MouthPucker: 0.4, MouthFunnel: 0.2},
	VisemeAA:  {JawOpen: 0.6, MouthStretch: 0.2, MouthWide: 0.4},
	VisemeE:   {JawOpen: 0.3, MouthSmile: 0.3, MouthWide: 0.3},
	VisemeI:   {JawOpen: 0.2, MouthSmile: 0.4},
	VisemeO:   {JawOpen: 0.4, MouthFunnel: 0.5, MouthPucker: 0.3},
	VisemeU:   {JawOpen: 0.25, MouthPucker: 0.6, MouthFunnel: 0.4},
}

// VisemeFor returns the viseme for a phoneme token. Unknown tokens map to
// silence.
func VisemeFor(phoneme string) string {
	if v, ok := phonemeToViseme[trimStress(phoneme)]; ok {
		return v
	}
	return VisemeSil
}

// WeightsFor returns a full blendshape map for the viseme with every name in
// BlendshapeNames present. Unmapped visemes get the silence pose.
func WeightsFor(viseme string) map[string]float64 {
	pose, ok := visemeWeights[viseme]
	if !ok {
		pose = visemeWeights[VisemeSil]
	}

	weights := make(map[string]float64, len(BlendshapeNames))
	for _, name := range BlendshapeNames {
		weights[name] = pose[name]
	}
	return weights
}

// trimStress drops a trailing ARPAbet stress digit ("AH0" -> "AH").
func trimStress(p string) string {
	if n := len(p); n > 1 && p[n-1] >= '0' && p[n-1] <= '2' {
		return p[:n-1]
	}
	return p
}
