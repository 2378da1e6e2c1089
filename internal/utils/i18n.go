package utils

// Minimal server-side messages for submission outcomes.
// Page copy lives with the front end; the API only reports outcomes.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":               "ok",
		"submit.ok":               "🎊 Preferences integrated successfully!",
		"submit.no_data":          "No data available. Please ensure data is correctly entered before proceeding.",
		"submit.missing_identity": "Data error: Signature cannot be null or empty.",
		"submit.storage":          "🫥 Sorry! Failed to update data.",
		"submit.prior_exists":     "Some of your preferences exist...Yes!",
		"submit.prior_missing":    "Some of your preferences exist...Not yet",
		"dichotomy.unanswered":    "Take your time: you can always change your mind.",
		"session.not_found":       "Session not found or expired.",
		"record.not_found":        "No preferences stored yet for this signature.",
	},
	"fr": {
		"health.ok":               "ok",
		"submit.ok":               "🎊 Préférences intégrées avec succès !",
		"submit.no_data":          "Aucune donnée disponible. Vérifiez vos réponses avant de continuer.",
		"submit.missing_identity": "Erreur de données : la signature ne peut pas être vide.",
		"submit.storage":          "🫥 Désolé ! La mise à jour des données a échoué.",
		"submit.prior_exists":     "Certaines de vos préférences existent...Oui !",
		"submit.prior_missing":    "Certaines de vos préférences existent...Pas encore",
		"session.not_found":       "Session introuvable ou expirée.",
		"record.not_found":        "Aucune préférence enregistrée pour cette signature.",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations["en"][key]; ok {
		return v
	}
	return key
}
