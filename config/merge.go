package config

// mergeMaps merges override into base. Nested maps merge key by key; any
// other value, lists included, is replaced wholesale.
func mergeMaps(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for key, value := range override {
		if baseValue, exists := result[key]; exists {
			if baseMap, baseOk := baseValue.(map[string]interface{}); baseOk {
				if overrideMap, overrideOk := value.(map[string]interface{}); overrideOk {
					result[key] = mergeMaps(baseMap, overrideMap)
					continue
				}
			}
		}
		result[key] = value
	}

	return result
}
