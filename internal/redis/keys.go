package redis

import "strconv"

// Store key layout (prefix configurable, default "icinga:"):
//
//   {prefix}event.idx          INCR    global sequence counter
//   {prefix}event.{index}      SET     serialized event body (+EXPIRE)
//   {prefix}event:{subscriber} LPUSH   per-subscriber index list
//   {prefix}subscription       HGETALL subscriber registry hash

func sequenceKey(prefix string) string {
	return prefix + "event.idx"
}

func eventKey(prefix string, index int64) string {
	return prefix + "event." + strconv.FormatInt(index, 10)
}

func subscriberKey(prefix, subscriber string) string {
	return prefix + "event:" + subscriber
}

func subscriptionKey(prefix string) string {
	return prefix + "subscription"
}
